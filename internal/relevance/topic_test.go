package relevance

import (
	"testing"

	"github.com/Adda-Baaj/newsdesk/internal/domain"
)

func TestFilterTopicSportsKeepsOnlySport(t *testing.T) {
	articles := []domain.Article{
		{ID: "s1", Title: "Late goal sends club top of the league"},
		{ID: "x1", Title: "Central bank holds rates"},
		{ID: "s2", Title: "Tennis star withdraws", Summary: "Injury ahead of the tournament"},
	}
	got := FilterTopic(domain.CategorySports, articles)
	if len(got) != 2 || got[0].ID != "s1" || got[1].ID != "s2" {
		t.Fatalf("FilterTopic = %#v", got)
	}
}

func TestFilterTopicFallsBackWhenEverythingFiltered(t *testing.T) {
	articles := []domain.Article{
		{ID: "x1", Title: "Central bank holds rates"},
		{ID: "x2", Title: "New phone announced"},
	}
	got := FilterTopic(domain.CategoryHealth, articles)
	if len(got) != 2 {
		t.Fatalf("expected unfiltered fallback, got %d articles", len(got))
	}
}

func TestFilterTopicPassesThroughUnfilteredCategories(t *testing.T) {
	articles := []domain.Article{{ID: "x1", Title: "Central bank holds rates"}}
	if got := FilterTopic(domain.CategoryBusiness, articles); len(got) != 1 {
		t.Fatalf("business has no keyword filter, got %d", len(got))
	}
	if HasTopicFilter(domain.CategoryBusiness) || !HasTopicFilter(domain.CategoryHealth) {
		t.Fatal("unexpected HasTopicFilter result")
	}
}

func TestFilterTopicMatchesAccentedText(t *testing.T) {
	articles := []domain.Article{
		{ID: "h1", Title: "Nuevo hospital abre en Bogotá", Summary: "Pacientes atendidos"},
		{ID: "x1", Title: "Elecciones locales"},
	}
	got := FilterTopic(domain.CategoryHealth, articles)
	if len(got) != 1 || got[0].ID != "h1" {
		t.Fatalf("FilterTopic = %#v", got)
	}
}

package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"live-quiz-service/internal/domain"
)

type countingLoader struct {
	decks map[string]domain.Deck
	calls int
}

func (l *countingLoader) LoadDeck(_ context.Context, deckID string) (domain.Deck, error) {
	l.calls++
	deck, ok := l.decks[deckID]
	if !ok {
		return domain.Deck{}, domain.ErrDeckNotFound
	}
	return deck, nil
}

func sampleDeck() domain.Deck {
	return domain.Deck{
		ID: "general",
		Questions: []domain.Question{
			{Index: 0, Prompt: "q0", Options: []string{"a", "b", "c"}, CorrectIndex: 2, DurationSec: 10},
			{Index: 1, Prompt: "q1", Options: []string{"a", "b"}, CorrectIndex: 1, DurationSec: 15},
			{Index: 2, Prompt: "q2", Options: []string{"a", "b"}, CorrectIndex: 0, DurationSec: 20},
		},
	}
}

func TestDeckRepositoryCachesInRedis(t *testing.T) {
	client := newTestRedis(t)
	loader := &countingLoader{decks: map[string]domain.Deck{"general": sampleDeck()}}
	repo := NewDeckRepository(client, loader, time.Minute)
	ctx := context.Background()

	deck, err := repo.GetDeck(ctx, "general")
	if err != nil {
		t.Fatalf("first get: %v", err)
	}
	if len(deck.Questions) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(deck.Questions))
	}

	fields, err := client.HGetAll(ctx, "deck:general:questions").Result()
	if err != nil || len(fields) != 3 {
		t.Fatalf("expected 3 cached hash fields, got %d err=%v", len(fields), err)
	}

	// A fresh repository over the same Redis serves from cache without
	// touching its loader.
	cold := NewDeckRepository(client, &countingLoader{}, time.Minute)
	cached, err := cold.GetDeck(ctx, "general")
	if err != nil {
		t.Fatalf("cached get: %v", err)
	}
	if len(cached.Questions) != 3 {
		t.Fatalf("expected cached deck, got %+v", cached)
	}
	if loader.calls != 1 {
		t.Fatalf("expected a single backing load, got %d", loader.calls)
	}
}

func TestDeckRepositoryPreservesQuestionOrder(t *testing.T) {
	client := newTestRedis(t)
	repo := NewDeckRepository(client, &countingLoader{decks: map[string]domain.Deck{"general": sampleDeck()}}, time.Minute)
	ctx := context.Background()

	if _, err := repo.GetDeck(ctx, "general"); err != nil {
		t.Fatalf("warm cache: %v", err)
	}

	cold := NewDeckRepository(client, &countingLoader{}, time.Minute)
	deck, err := cold.GetDeck(ctx, "general")
	if err != nil {
		t.Fatalf("cached get: %v", err)
	}
	for i, q := range deck.Questions {
		if q.Index != i {
			t.Fatalf("question %d came back at position %d", q.Index, i)
		}
	}
	if deck.Questions[0].Prompt != "q0" || deck.Questions[2].Prompt != "q2" {
		t.Fatalf("prompts lost through the cache round trip: %+v", deck.Questions)
	}
	if deck.Questions[0].CorrectIndex != 2 {
		t.Fatalf("correct index lost through the cache round trip: %+v", deck.Questions[0])
	}
}

func TestDeckRepositoryOrdersDecksWithoutExplicitIndexes(t *testing.T) {
	// Authored decks (the built-in one, hand-written JSONB) often carry no
	// per-question index; play order must still survive the cache.
	deck := domain.Deck{ID: "plain"}
	for i := 0; i < 8; i++ {
		deck.Questions = append(deck.Questions, domain.Question{
			Prompt:       fmt.Sprintf("q%d", i),
			Options:      []string{"a", "b"},
			CorrectIndex: 0,
			DurationSec:  10,
		})
	}

	client := newTestRedis(t)
	repo := NewDeckRepository(client, &countingLoader{decks: map[string]domain.Deck{"plain": deck}}, time.Minute)
	ctx := context.Background()

	if _, err := repo.GetDeck(ctx, "plain"); err != nil {
		t.Fatalf("warm cache: %v", err)
	}

	cold := NewDeckRepository(client, &countingLoader{}, time.Minute)
	got, err := cold.GetDeck(ctx, "plain")
	if err != nil {
		t.Fatalf("cached get: %v", err)
	}
	for i, q := range got.Questions {
		if want := fmt.Sprintf("q%d", i); q.Prompt != want {
			t.Fatalf("position %d holds %q, want %q", i, q.Prompt, want)
		}
		if q.Index != i {
			t.Fatalf("position %d carries index %d", i, q.Index)
		}
	}
}

func TestDeckRepositoryPropagatesNotFound(t *testing.T) {
	client := newTestRedis(t)
	repo := NewDeckRepository(client, &countingLoader{}, time.Minute)
	if _, err := repo.GetDeck(context.Background(), "missing"); !errors.Is(err, domain.ErrDeckNotFound) {
		t.Fatalf("expected deck not found, got %v", err)
	}
}

package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"live-quiz-service/internal/domain"
)

// DeckLoader fetches deck content from a backing store (e.g., Postgres).
type DeckLoader interface {
	LoadDeck(ctx context.Context, deckID string) (domain.Deck, error)
}

// DeckRepository caches decks in Redis (hash per deck, one field per
// question index holding the question JSON) and falls back to a loader on
// cache miss. Stored as: HSET deck:{deckID}:questions {index} {questionJSON}
type DeckRepository struct {
	client *redis.Client
	loader DeckLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewDeckRepository(client *redis.Client, loader DeckLoader, ttl time.Duration) *DeckRepository {
	return &DeckRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *DeckRepository) GetDeck(ctx context.Context, deckID string) (domain.Deck, error) {
	key := r.questionsKey(deckID)

	fields, err := r.client.HGetAll(ctx, key).Result()
	if err == nil && len(fields) > 0 {
		return buildDeckFromCache(deckID, fields)
	}

	result, err, _ := r.sf.Do(deckID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		fields, err := r.client.HGetAll(ctx, key).Result()
		if err == nil && len(fields) > 0 {
			return buildDeckFromCache(deckID, fields)
		}

		deck, err := r.loader.LoadDeck(ctx, deckID)
		if err != nil {
			return domain.Deck{}, err
		}

		ttl := r.ttlWithJitter()
		pipe := r.client.Pipeline()
		for i, q := range deck.Questions {
			q.Index = i
			raw, err := json.Marshal(q)
			if err != nil {
				return domain.Deck{}, err
			}
			pipe.HSet(ctx, key, i, raw)
		}
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		_, _ = pipe.Exec(ctx)

		return deck, nil
	})
	if err != nil {
		return domain.Deck{}, err
	}
	return result.(domain.Deck), nil
}

func (r *DeckRepository) questionsKey(deckID string) string {
	return "deck:" + deckID + ":questions"
}

func buildDeckFromCache(deckID string, fields map[string]string) (domain.Deck, error) {
	// Hash fields come back unordered; the field key is the play position.
	questions := make([]domain.Question, len(fields))
	for field, raw := range fields {
		pos, err := strconv.Atoi(field)
		if err != nil || pos < 0 || pos >= len(fields) {
			return domain.Deck{}, fmt.Errorf("deck %s: unexpected cache field %q", deckID, field)
		}
		var q domain.Question
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			return domain.Deck{}, err
		}
		q.Index = pos
		questions[pos] = q
	}
	return domain.Deck{ID: deckID, Questions: questions}, nil
}

func (r *DeckRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

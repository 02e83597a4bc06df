package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"bibleai-be/internal/pkg/logger"
	"bibleai-be/pkg/events"
	"bibleai-be/pkg/nats"
)

// EventSource is the subscribing side of the event bus
type EventSource interface {
	Subscribe(ctx context.Context, eventType, durableName string, handler nats.EventHandler) error
}

type IAnalyticsService interface {
	Consume(ctx context.Context) error
	Handle(ctx context.Context, event events.Event) error
	Stats() *TurnStats
}

// TurnStats aggregates recorded turns. No message text is kept.
type TurnStats struct {
	Turns      int            `json:"turns"`
	ByMode     map[string]int `json:"by_mode"`
	ByLanguage map[string]int `json:"by_language"`
	TopVerses  []VerseCount   `json:"top_verses"`
}

type VerseCount struct {
	VerseKey string `json:"verse_key"`
	Count    int    `json:"count"`
}

const topVerses = 10

type analyticsService struct {
	source EventSource
	logger logger.ILogger

	mu         sync.Mutex
	turns      int
	byMode     map[string]int
	byLanguage map[string]int
	verses     map[string]int
}

func NewAnalyticsService(source EventSource, logger logger.ILogger) IAnalyticsService {
	return &analyticsService{
		source:     source,
		logger:     logger,
		byMode:     make(map[string]int),
		byLanguage: make(map[string]int),
		verses:     make(map[string]int),
	}
}

func (s *analyticsService) Consume(ctx context.Context) error {
	if s.source == nil {
		return nil
	}
	return s.source.Subscribe(ctx, events.EventTurnRecorded, "bibleai-analytics", s.Handle)
}

func (s *analyticsService) Handle(ctx context.Context, event events.Event) error {
	if event.EventType() != events.EventTurnRecorded {
		return nil
	}
	payload := event.Payload()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns++
	if mode, ok := payload["mode"].(string); ok {
		s.byMode[mode]++
	}
	if lang, ok := payload["language"].(string); ok {
		s.byLanguage[lang]++
	}
	for _, key := range stringList(payload["sources"]) {
		s.verses[key]++
	}
	return nil
}

func (s *analyticsService) Stats() *TurnStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := &TurnStats{
		Turns:      s.turns,
		ByMode:     make(map[string]int, len(s.byMode)),
		ByLanguage: make(map[string]int, len(s.byLanguage)),
		TopVerses:  make([]VerseCount, 0, len(s.verses)),
	}
	for k, v := range s.byMode {
		out.ByMode[k] = v
	}
	for k, v := range s.byLanguage {
		out.ByLanguage[k] = v
	}
	for k, v := range s.verses {
		out.TopVerses = append(out.TopVerses, VerseCount{VerseKey: k, Count: v})
	}
	sort.Slice(out.TopVerses, func(i, j int) bool {
		if out.TopVerses[i].Count != out.TopVerses[j].Count {
			return out.TopVerses[i].Count > out.TopVerses[j].Count
		}
		return out.TopVerses[i].VerseKey < out.TopVerses[j].VerseKey
	})
	if len(out.TopVerses) > topVerses {
		out.TopVerses = out.TopVerses[:topVerses]
	}
	return out
}

// stringList accepts []string from in-process events and []interface{} from decoded JSON
func stringList(v interface{}) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, item := range list {
			out = append(out, fmt.Sprint(item))
		}
		return out
	}
	return nil
}

package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"bahasa-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// ProgressStore keeps learner progress in one hash per learner and language:
//
//	HSET progress:{userID}:{language} {game}:highest {level} {game}:completed {count}
type ProgressStore struct {
	client *redis.Client
}

func NewProgressStore(client *redis.Client) *ProgressStore {
	return &ProgressStore{client: client}
}

// KEYS[1] hash; ARGV[1] highest field, ARGV[2] level or 0 when not passed, ARGV[3] completed field.
var recordCompletion = redis.NewScript(`
local cur = tonumber(redis.call('HGET', KEYS[1], ARGV[1])) or 0
local level = tonumber(ARGV[2])
if level > cur then
	redis.call('HSET', KEYS[1], ARGV[1], level)
	cur = level
end
local done = redis.call('HINCRBY', KEYS[1], ARGV[3], 1)
return {cur, done}
`)

func (s *ProgressStore) RecordCompletion(ctx context.Context, userID string, result domain.SessionResult) (domain.Progress, error) {
	level := 0
	if result.Passed() {
		level = result.Key.Level
	}
	game := string(result.Key.Game)
	res, err := recordCompletion.Run(ctx, s.client,
		[]string{s.key(userID, result.Key.Language)},
		game+":highest", level, game+":completed",
	).Int64Slice()
	if err != nil {
		return domain.Progress{}, fmt.Errorf("record completion: %w", err)
	}
	if len(res) != 2 {
		return domain.Progress{}, fmt.Errorf("record completion: unexpected reply %v", res)
	}
	return domain.Progress{
		Language:              result.Key.Language,
		Game:                  result.Key.Game,
		HighestLevelCompleted: int(res[0]),
		LessonsCompleted:      int(res[1]),
	}, nil
}

func (s *ProgressStore) ListProgress(ctx context.Context, userID, language string) ([]domain.Progress, error) {
	fields, err := s.client.HGetAll(ctx, s.key(userID, language)).Result()
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}

	byGame := make(map[domain.Game]*domain.Progress)
	for field, raw := range fields {
		game, kind, ok := strings.Cut(field, ":")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		p, ok := byGame[domain.Game(game)]
		if !ok {
			p = &domain.Progress{Language: language, Game: domain.Game(game)}
			byGame[domain.Game(game)] = p
		}
		switch kind {
		case "highest":
			p.HighestLevelCompleted = n
		case "completed":
			p.LessonsCompleted = n
		}
	}

	out := make([]domain.Progress, 0, len(byGame))
	for _, p := range byGame {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Game < out[j].Game })
	return out, nil
}

func (s *ProgressStore) key(userID, language string) string {
	return "progress:" + userID + ":" + language
}

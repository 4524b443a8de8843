package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"bahasa-quiz-service/internal/app"
	"bahasa-quiz-service/internal/catalog"
	"bahasa-quiz-service/internal/domain"
	"bahasa-quiz-service/internal/infra/postgres"
	pgmigrations "bahasa-quiz-service/internal/infra/postgres/migrations"
	infraredis "bahasa-quiz-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

var wordCardKey = domain.SetKey{Language: "sundanese", Game: domain.GameWordCard, Level: 1}

func TestSessionEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedCatalog(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	loader := postgres.NewQuestionLoader(pool)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	questions := infraredis.NewQuestionRepository(redisClient, loader, 5*time.Minute)
	sessions := infraredis.NewSessionStore(redisClient, 5*time.Minute)
	progress := infraredis.NewProgressStore(redisClient)
	service := app.NewSessionService(sessions, questions, progress)

	finished := make(chan struct{}, 1)
	session, err := service.Start(ctx, "u1", wordCardKey, app.NavigationHostFunc(func() {
		finished <- struct{}{}
	}))
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	for {
		snap := session.Snapshot()
		if snap.State != app.StateActive {
			break
		}
		if _, ok, err := service.Select(session.ID, snap.Question.CorrectAnswer); err != nil || !ok {
			t.Fatalf("select: applied=%v err=%v", ok, err)
		}
		if snap, _, _ := service.Check(session.ID); !snap.Correct {
			t.Fatalf("expected correct answer on question %d", snap.Index)
		}
		if _, ok, err := service.Advance(session.ID); err != nil || !ok {
			t.Fatalf("advance: applied=%v err=%v", ok, err)
		}
	}

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatalf("expected finish notification")
	}
	if state := session.Snapshot().State; state != app.StateCompleted {
		t.Fatalf("expected completed, got %s", state)
	}

	list, err := service.Progress(ctx, "u1", "sundanese")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if len(list) != 1 || list[0].Game != domain.GameWordCard || list[0].HighestLevelCompleted != 1 {
		t.Fatalf("unexpected progress: %+v", list)
	}

	// A second session is served from the redis cache.
	if _, err := service.Start(ctx, "u2", wordCardKey, nil); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if n, err := redisClient.Exists(ctx, "questions:sundanese:kartu_kata:1").Result(); err != nil || n != 1 {
		t.Fatalf("expected cached question set, got %d (%v)", n, err)
	}
}

func TestMissingSetIsEmpty(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	seedCatalog(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	questions, err := postgres.NewQuestionLoader(pool).LoadQuestions(ctx, domain.SetKey{Language: "sundanese", Game: domain.GameWordCard, Level: 99})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(questions) != 0 {
		t.Fatalf("expected empty set, got %d questions", len(questions))
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedCatalog(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	sets, err := catalog.Load()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	n, err := postgres.NewQuestionWriter(db).SaveSets(ctx, sets)
	if err != nil {
		t.Fatalf("save sets: %v", err)
	}
	if n != len(sets) {
		t.Fatalf("expected %d sets saved, got %d", len(sets), n)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}

package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
	"live-quiz-service/internal/infra/postgres"
	pgmigrations "live-quiz-service/internal/infra/postgres/migrations"
	infraredis "live-quiz-service/internal/infra/redis"
	"live-quiz-service/internal/registry"
	"live-quiz-service/internal/relay"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestAttemptLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateDB(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	quizStore := postgres.NewQuizStore(pool)
	catalog := memory.NewQuizCatalog(quizStore, infraredis.NewQuizCache(redisClient), time.Minute, time.Hour)
	broker := infraredis.NewBroker(redisClient)
	quizzes := app.NewQuizService(catalog, quizStore)
	attempts := app.NewAttemptService(catalog, postgres.NewAttemptStore(pool), relay.NewPublisher(broker, time.Second), app.LateAnswersGrade)

	reg := registry.New()
	pusher := newRecordingPusher()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = relay.NewSubscriber(broker, reg, pusher).Run(runCtx) }()
	waitForPatternSubscriber(t, ctx, redisClient)

	quiz, err := quizzes.CreateQuiz(ctx, app.NewQuizInput{
		Title:     "Arithmetic",
		TimeLimit: 10 * time.Minute,
		Questions: []app.NewQuestionInput{
			{Text: "What is 2 + 2?", Points: 10, Options: []domain.Option{{Text: "3"}, {Text: "4", Correct: true}}},
			{Text: "What is 3 + 3?", Points: 5, Options: []domain.Option{{Text: "6", Correct: true}, {Text: "9"}}},
		},
	})
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	summary, err := quizzes.Summary(ctx, quiz.ID)
	if err != nil || summary.TotalPoints != 15 {
		t.Fatalf("unexpected summary %+v %v", summary, err)
	}

	reg.Join("c1", quiz.ID, "u1")
	reg.Join("c2", quiz.ID, "u2")

	attempt, err := attempts.StartAttempt(ctx, "u1", quiz.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	again, err := attempts.StartAttempt(ctx, "u1", quiz.ID)
	if err != nil || again.ID != attempt.ID {
		t.Fatalf("expected in-progress attempt to be reused, got %+v %v", again, err)
	}

	q1 := quiz.Questions[0].ID
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		wins   int
		losses int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := attempts.SubmitAnswer(ctx, "u1", quiz.ID, q1, "4")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, domain.ErrAlreadyAnswered):
				losses++
			default:
				t.Errorf("unexpected submit error: %v", err)
			}
		}()
	}
	wg.Wait()
	if wins != 1 || losses != 7 {
		t.Fatalf("expected exactly one recorded answer, got wins=%d losses=%d", wins, losses)
	}

	result, err := attempts.SubmitAnswer(ctx, "u1", quiz.ID, quiz.Questions[1].ID, "6")
	if err != nil {
		t.Fatalf("second answer: %v", err)
	}
	if !result.Correct || result.TotalPointsEarned != 15 {
		t.Fatalf("unexpected result %+v", result)
	}
	update := pusher.waitForTotal(t, "c2", relay.EventLeaderboardUpdated, 15)
	if update.UserID != "u1" {
		t.Fatalf("unexpected leaderboard update %+v", update)
	}

	done, err := attempts.Complete(ctx, "u1", quiz.ID)
	if err != nil || done.Status != domain.StatusCompleted {
		t.Fatalf("complete: %+v %v", done, err)
	}
	if _, err := attempts.SubmitAnswer(ctx, "u1", quiz.ID, q1, "4"); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state after completion, got %v", err)
	}
}

func TestOverdueAttemptsAreSwept(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	migrateDB(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	quizStore := postgres.NewQuizStore(pool)
	catalog := memory.NewQuizCatalog(quizStore, nil, time.Minute, time.Hour)
	quiz, err := app.NewQuizService(catalog, quizStore).CreateQuiz(ctx, app.NewQuizInput{
		Title:     "Short",
		TimeLimit: time.Minute,
		Questions: []app.NewQuestionInput{{Text: "Pick a", Points: 1, Options: []domain.Option{{Text: "a", Correct: true}}}},
	})
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}

	clock := time.Now().UTC().Truncate(time.Microsecond)
	now := func() time.Time { return clock }
	store := postgres.NewAttemptStore(pool)
	attempts := app.NewAttemptServiceWithClock(catalog, store, nil, app.LateAnswersReject, now)

	if _, err := attempts.StartAttempt(ctx, "u1", quiz.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := attempts.StartAttempt(ctx, "u2", quiz.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	clock = clock.Add(2 * time.Minute)
	n, err := attempts.ExpireOverdue(ctx)
	if err != nil || n != 2 {
		t.Fatalf("expected two expired attempts, got %d %v", n, err)
	}
	current, err := attempts.CurrentAttempt(ctx, "u1", quiz.ID)
	if err != nil || current.Status != domain.StatusExpired {
		t.Fatalf("expected expired attempt, got %+v %v", current, err)
	}

	fresh, err := attempts.StartAttempt(ctx, "u1", quiz.ID)
	if err != nil || fresh.ID == current.ID || fresh.Status != domain.StatusInProgress {
		t.Fatalf("expected a fresh attempt, got %+v %v", fresh, err)
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

func migrateDB(t *testing.T, ctx context.Context, dsn string) {
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
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func waitForPatternSubscriber(t *testing.T, ctx context.Context, client *goredis.Client) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if n, err := client.PubSubNumPat(ctx).Result(); err == nil && n > 0 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("relay subscriber never attached")
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}

type recordingPusher struct {
	mu     sync.Mutex
	pushes map[string][]relay.LeaderboardUpdate
}

func newRecordingPusher() *recordingPusher {
	return &recordingPusher{pushes: map[string][]relay.LeaderboardUpdate{}}
}

func (p *recordingPusher) SendToConnection(connectionID, event string, payload any) error {
	if update, ok := payload.(relay.LeaderboardUpdate); ok && event == relay.EventLeaderboardUpdated {
		p.mu.Lock()
		p.pushes[connectionID] = append(p.pushes[connectionID], update)
		p.mu.Unlock()
	}
	return nil
}

func (p *recordingPusher) SendToConnections(connectionIDs []string, event string, payload any) error {
	for _, id := range connectionIDs {
		_ = p.SendToConnection(id, event, payload)
	}
	return nil
}

func (p *recordingPusher) waitForTotal(t *testing.T, conn, event string, total int) relay.LeaderboardUpdate {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		p.mu.Lock()
		for _, u := range p.pushes[conn] {
			if u.TotalPointsEarned == total {
				p.mu.Unlock()
				return u
			}
		}
		p.mu.Unlock()
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("no %s push with total %d to %s", event, total, conn)
	return relay.LeaderboardUpdate{}
}

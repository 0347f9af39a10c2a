package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"companion-dispatch.com/companion-dispatch/internal/constants"
	"companion-dispatch.com/companion-dispatch/internal/events"
	model "companion-dispatch.com/companion-dispatch/internal/models"
	repository "companion-dispatch.com/companion-dispatch/internal/repositories"
)

// fakeClock lets tests pin and advance time.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	db          *gorm.DB
	tasks       *repository.TaskRepository
	players     *repository.PlayerRepository
	extensions  *repository.ExtensionRepository
	queue       *QueueService
	assignments *AssignmentService
	extension   *ExtensionService
	overtime    *OvertimeService
	broadcaster *events.MemoryBroadcaster
	clock       *fakeClock
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	err = db.AutoMigrate(&model.Player{}, &model.Task{}, &model.ExtensionRequest{}, &model.TaskLog{})
	if err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)

	return db
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	db := setupTestDB(t)
	clock := newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	broadcaster := events.NewMemoryBroadcaster()

	tasks := repository.NewTaskRepository(db)
	players := repository.NewPlayerRepository(db)
	extensions := repository.NewExtensionRepository(db)

	queue := NewQueueService(db, tasks, players, broadcaster, clock)
	assignments := NewAssignmentService(db, tasks, players, queue, broadcaster, clock)
	extension := NewExtensionService(db, tasks, extensions, broadcaster, clock)
	overtime := NewOvertimeService(db, tasks, broadcaster, clock, time.Minute, 100)

	return &testEnv{
		db:          db,
		tasks:       tasks,
		players:     players,
		extensions:  extensions,
		queue:       queue,
		assignments: assignments,
		extension:   extension,
		overtime:    overtime,
		broadcaster: broadcaster,
		clock:       clock,
	}
}

func (env *testEnv) seedPlayer(t *testing.T, status constants.PlayerStatus) *model.Player {
	t.Helper()

	player := &model.Player{Name: "player", Status: status}
	if err := env.players.Create(context.Background(), player); err != nil {
		t.Fatalf("failed to seed player: %v", err)
	}
	return player
}

func (env *testEnv) createTask(t *testing.T, dispatcherID string, playerID *string) *model.Task {
	t.Helper()

	task, err := env.assignments.CreateTask(context.Background(), CreateTaskInput{
		CustomerName:    "customer",
		CustomerContact: "contact",
		GameName:        "game",
		GameMode:        "ranked",
		DurationMinutes: 60,
		Price:           99.90,
		PlayerID:        playerID,
	}, dispatcherID)
	if err != nil {
		t.Fatalf("failed to create task: %v", err)
	}
	return task
}

// runningTask creates, accepts and starts a task for the given player.
func (env *testEnv) runningTask(t *testing.T, dispatcherID, playerID string) *model.Task {
	t.Helper()

	ctx := context.Background()
	task := env.createTask(t, dispatcherID, nil)
	if _, err := env.assignments.AcceptTask(ctx, task.ID, playerID); err != nil {
		t.Fatalf("failed to accept task: %v", err)
	}
	started, err := env.assignments.StartTask(ctx, task.ID, playerID)
	if err != nil {
		t.Fatalf("failed to start task: %v", err)
	}
	return started
}

func (env *testEnv) playerStatus(t *testing.T, id string) constants.PlayerStatus {
	t.Helper()

	player, err := env.players.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("failed to fetch player: %v", err)
	}
	return player.Status
}

func (env *testEnv) taskStatus(t *testing.T, id string) constants.TaskStatus {
	t.Helper()

	task, err := env.tasks.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("failed to fetch task: %v", err)
	}
	return task.Status
}

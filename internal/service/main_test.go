package service_test

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"taskhub/internal/config"
	"taskhub/internal/models"
	"taskhub/internal/repository"
	"taskhub/internal/service"
	"taskhub/pkg/logger"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
)

func TestMain(m *testing.M) {
	logger.InitLoggers()
	defer logger.SyncLoggers()

	os.Setenv("GO_ENV", "test")

	pool, err := dockertest.NewPool("")
	if err != nil {
		log.Fatalf("Could not construct docker pool: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		log.Fatalf("Could not connect to docker: %v", err)
	}
	pool.MaxWait = 2 * time.Minute

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=postgres",
			"POSTGRES_PASSWORD=secret",
			"POSTGRES_DB=taskhub_test",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		log.Fatalf("Could not start postgres container: %v", err)
	}

	hostPort := resource.GetHostPort("5432/tcp")
	if err := pool.Retry(func() error {
		db, err := sql.Open("postgres",
			fmt.Sprintf("postgres://postgres:secret@%s/taskhub_test?sslmode=disable", hostPort))
		if err != nil {
			return err
		}
		if err := db.Ping(); err != nil {
			return err
		}
		config.DB = db
		return nil
	}); err != nil {
		log.Fatalf("Could not connect to postgres container: %v", err)
	}

	repository.CreateTableIfNotExists(config.DB)

	code := m.Run()

	repository.DeleteAllTable(config.DB)
	config.DB.Close()
	if err := pool.Purge(resource); err != nil {
		log.Printf("Could not purge postgres container: %v", err)
	}
	os.Exit(code)
}

// createTestUser registers a user with a unique name and returns its id.
func createTestUser(t *testing.T) int {
	t.Helper()
	name := fmt.Sprintf("user_%d", time.Now().UnixNano())
	user, err := service.RegisterUser(name, name+"@example.com", "testpass")
	if err != nil {
		t.Fatalf("Error registering test user: %v", err)
	}
	return user.ID
}

// createTestTask persists a task with sensible defaults, overridable
// through in.
func createTestTask(t *testing.T, userID int, in service.TaskInput) *models.Task {
	t.Helper()
	if in.Title == "" {
		in.Title = "Test Task"
	}
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	task, err := service.CreateTask(userID, in)
	if err != nil {
		t.Fatalf("Error creating test task: %v", err)
	}
	return task
}

func createTestSubtask(t *testing.T, userID, taskID int, title, status string) *models.Subtask {
	t.Helper()
	subtask, err := service.CreateSubtask(userID, taskID, title, status)
	if err != nil {
		t.Fatalf("Error creating test subtask: %v", err)
	}
	return subtask
}

func dateOffset(days int) *time.Time {
	d := time.Now().AddDate(0, 0, days)
	return &d
}

package db

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCreateAndGetTask(t *testing.T) {
	db := openTestDB(t)

	task := &Task{Title: "Fix bug", Body: "It crashes"}
	if err := db.CreateTask(task, nil); err != nil {
		t.Fatalf("failed to create task: %v", err)
	}
	if task.ID == "" {
		t.Fatal("expected task ID to be assigned")
	}
	if task.Status != StatusTodo {
		t.Errorf("expected default status %q, got %q", StatusTodo, task.Status)
	}

	got, err := db.GetTask(task.ID)
	if err != nil {
		t.Fatalf("failed to get task: %v", err)
	}
	if got.Title != "Fix bug" || got.Body != "It crashes" {
		t.Errorf("unexpected task: %+v", got)
	}

	// Timestamps come back in local time
	if got.CreatedAt.Location() != time.Local {
		t.Errorf("expected CreatedAt in local timezone, got %v", got.CreatedAt.Location())
	}
	if diff := time.Since(got.CreatedAt.Time); diff < -time.Minute || diff > time.Minute {
		t.Errorf("CreatedAt %v is not close to now", got.CreatedAt.Time)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := db.GetTask("missing")
	if !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestCreateTaskRejectsInvalidStatus(t *testing.T) {
	db := openTestDB(t)

	if err := db.CreateTask(&Task{Title: "x", Status: "pending"}, nil); err == nil {
		t.Error("expected error for invalid status")
	}
}

func TestUpdateTaskImages(t *testing.T) {
	db := openTestDB(t)

	a := &Image{OriginalName: "a.png", FilePath: "/f/a.png"}
	b := &Image{OriginalName: "b.png", FilePath: "/f/b.png"}
	for _, img := range []*Image{a, b} {
		if err := db.CreateImage(img); err != nil {
			t.Fatalf("failed to create image: %v", err)
		}
	}

	task := &Task{Title: "With images"}
	if err := db.CreateTask(task, []string{a.ID}); err != nil {
		t.Fatalf("failed to create task: %v", err)
	}

	// nil image IDs leave links untouched
	task.Status = StatusDone
	detached, err := db.UpdateTask(task, nil)
	if err != nil {
		t.Fatalf("failed to update task: %v", err)
	}
	if len(detached) != 0 {
		t.Errorf("expected nothing detached, got %v", detached)
	}
	images, err := db.ListTaskImages(task.ID)
	if err != nil {
		t.Fatalf("failed to list images: %v", err)
	}
	if len(images) != 1 || images[0].ID != a.ID {
		t.Fatalf("expected only image a, got %v", images)
	}

	// non-nil image IDs replace links and keep order
	if _, err := db.UpdateTask(task, []string{b.ID, a.ID}); err != nil {
		t.Fatalf("failed to update task: %v", err)
	}
	images, err = db.ListTaskImages(task.ID)
	if err != nil {
		t.Fatalf("failed to list images: %v", err)
	}
	if len(images) != 2 || images[0].ID != b.ID || images[1].ID != a.ID {
		t.Errorf("expected [b a], got %v", images)
	}

	got, _ := db.GetTask(task.ID)
	if got.Status != StatusDone {
		t.Errorf("expected status %q, got %q", StatusDone, got.Status)
	}
}

func TestUpdateTaskNotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := db.UpdateTask(&Task{ID: "nope", Title: "x", Status: StatusTodo}, nil)
	if !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestUpdateTaskReportsDetachedImages(t *testing.T) {
	db := openTestDB(t)

	a := &Image{OriginalName: "a.png", FilePath: "/f/a.png"}
	b := &Image{OriginalName: "b.png", FilePath: "/f/b.png"}
	c := &Image{OriginalName: "c.png", FilePath: "/f/c.png"}
	for _, img := range []*Image{a, b, c} {
		db.CreateImage(img)
	}
	task := &Task{Title: "t"}
	if err := db.CreateTask(task, []string{a.ID, b.ID}); err != nil {
		t.Fatalf("failed to create task: %v", err)
	}

	detached, err := db.UpdateTask(task, []string{b.ID, c.ID})
	if err != nil {
		t.Fatalf("failed to update task: %v", err)
	}
	if len(detached) != 1 || detached[0] != a.ID {
		t.Errorf("expected [a] detached, got %v", detached)
	}

	detached, err = db.UpdateTask(task, []string{})
	if err != nil {
		t.Fatalf("failed to update task: %v", err)
	}
	if len(detached) != 2 {
		t.Errorf("expected b and c detached, got %v", detached)
	}
}

func TestDeleteUnlinkedImages(t *testing.T) {
	db := openTestDB(t)

	kept := &Image{OriginalName: "kept.png", FilePath: "/f/kept.png"}
	dropped := &Image{OriginalName: "dropped.png", FilePath: "/f/dropped.png"}
	pending := &Image{OriginalName: "pending.png", FilePath: "/f/pending.png"}
	for _, img := range []*Image{kept, dropped, pending} {
		db.CreateImage(img)
	}
	if err := db.CreateTask(&Task{Title: "t"}, []string{kept.ID}); err != nil {
		t.Fatalf("failed to create task: %v", err)
	}

	removed, err := db.DeleteUnlinkedImages([]string{kept.ID, dropped.ID})
	if err != nil {
		t.Fatalf("failed to delete images: %v", err)
	}
	if len(removed) != 1 || removed[0].ID != dropped.ID {
		t.Fatalf("expected only dropped to be removed, got %v", removed)
	}
	if _, err := db.GetImage(dropped.ID); !errors.Is(err, ErrImageNotFound) {
		t.Errorf("expected dropped row gone, got %v", err)
	}
	if _, err := db.GetImage(kept.ID); err != nil {
		t.Errorf("expected linked image to remain: %v", err)
	}
	// unlinked but not listed, e.g. uploaded by a dialog that has not saved yet
	if _, err := db.GetImage(pending.ID); err != nil {
		t.Errorf("expected unlisted image to remain: %v", err)
	}

	removed, err = db.DeleteUnlinkedImages(nil)
	if err != nil || removed != nil {
		t.Errorf("expected no-op for nil ids, got %v, %v", removed, err)
	}
}

func TestCreateTaskWithRun(t *testing.T) {
	db := openTestDB(t)

	task := &Task{Title: "start me", Status: StatusInProgress}
	run := &Run{Executor: "CODEX", TargetBranch: "main", Prompt: "start me"}
	if err := db.CreateTaskWithRun(task, nil, run); err != nil {
		t.Fatalf("failed to create task with run: %v", err)
	}
	if run.TaskID != task.ID {
		t.Errorf("expected run linked to %s, got %s", task.ID, run.TaskID)
	}
	runs, err := db.ListRunsForTask(task.ID)
	if err != nil || len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d (%v)", len(runs), err)
	}
}

func TestCreateTaskWithRunRollsBack(t *testing.T) {
	db := openTestDB(t)

	first := &Task{Title: "first"}
	run := &Run{Executor: "CODEX", TargetBranch: "main"}
	if err := db.CreateTaskWithRun(first, nil, run); err != nil {
		t.Fatalf("failed to create task with run: %v", err)
	}

	// reusing the run id makes the run insert fail after the task insert
	second := &Task{Title: "second"}
	if err := db.CreateTaskWithRun(second, nil, &Run{ID: run.ID, Executor: "CODEX", TargetBranch: "main"}); err == nil {
		t.Fatal("expected error for duplicate run id")
	}
	if _, err := db.GetTask(second.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("expected second task rolled back, got %v", err)
	}
	all, _ := db.ListTasks(ListTasksOptions{})
	if len(all) != 1 {
		t.Errorf("expected 1 task, got %d", len(all))
	}
}

func TestListTasksByStatus(t *testing.T) {
	db := openTestDB(t)

	db.CreateTask(&Task{Title: "a"}, nil)
	db.CreateTask(&Task{Title: "b", Status: StatusDone}, nil)
	db.CreateTask(&Task{Title: "c"}, nil)

	all, err := db.ListTasks(ListTasksOptions{})
	if err != nil {
		t.Fatalf("failed to list tasks: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 tasks, got %d", len(all))
	}

	todo, err := db.ListTasks(ListTasksOptions{Status: StatusTodo})
	if err != nil {
		t.Fatalf("failed to list tasks: %v", err)
	}
	if len(todo) != 2 {
		t.Errorf("expected 2 todo tasks, got %d", len(todo))
	}
}

func TestRuns(t *testing.T) {
	db := openTestDB(t)

	task := &Task{Title: "run me"}
	db.CreateTask(task, nil)

	run := &Run{TaskID: task.ID, Executor: "CLAUDE_CODE", TargetBranch: "main", Prompt: "run me"}
	if err := db.CreateRun(run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	got, err := db.GetRun(run.ID)
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if got.Status != RunStatusQueued || got.TargetBranch != "main" {
		t.Errorf("unexpected run: %+v", got)
	}

	runs, err := db.ListRunsForTask(task.ID)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("expected 1 run, got %d", len(runs))
	}

	if _, err := db.GetRun("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestSettings(t *testing.T) {
	db := openTestDB(t)

	v, err := db.GetSetting("images_dir")
	if err != nil || v != "" {
		t.Fatalf("expected empty setting, got %q, %v", v, err)
	}
	db.SetSetting("images_dir", "/tmp/a")
	db.SetSetting("images_dir", "/tmp/b")
	if v, _ := db.GetSetting("images_dir"); v != "/tmp/b" {
		t.Errorf("expected /tmp/b, got %q", v)
	}
}

// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

package process

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Task is one runnable unit of a platform binary: the long-running server,
// a migration, a one-shot admin action.
type Task struct {
	Name        string
	Description string
	Run         func(ctx context.Context, env *Environment) error
}

var (
	tasksMu sync.RWMutex
	tasks   = map[string]Task{}
)

// RegisterTask adds a task to the registry. Registration happens during
// startup; a duplicate name is a programmer error.
func RegisterTask(task Task) {
	tasksMu.Lock()
	defer tasksMu.Unlock()
	if _, ok := tasks[task.Name]; ok {
		panic(fmt.Sprintf("process: duplicate task registration for %q", task.Name))
	}
	tasks[task.Name] = task
}

// LookupTask finds a registered task by name.
func LookupTask(name string) (Task, bool) {
	tasksMu.RLock()
	defer tasksMu.RUnlock()
	task, ok := tasks[name]
	return task, ok
}

// Tasks lists the registered tasks in name order.
func Tasks() []Task {
	tasksMu.RLock()
	defer tasksMu.RUnlock()

	list := make([]Task, 0, len(tasks))
	for _, task := range tasks {
		list = append(list, task)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

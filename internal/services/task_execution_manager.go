package services

import (
	"sync"
)

// TaskExecutionManager 管理正在运行的批量任务的中断标志
// 注册、停止和完成都以任务 ID 为键，可安全地被多个 goroutine 并发调用
type TaskExecutionManager interface {
	// Register 登记一个开始执行的任务，清除其历史中断标志
	Register(taskID int64)
	// IsInterrupted 查询任务是否已被请求停止
	IsInterrupted(taskID int64) bool
	// Stop 请求停止一个正在运行的任务，任务不在运行时返回 false
	Stop(taskID int64) bool
	// Complete 注销任务并清理其中断标志
	Complete(taskID int64)
	// IsRunning 查询任务当前是否登记为运行中
	IsRunning(taskID int64) bool
	// RunningCount 返回当前登记为运行中的任务数量
	RunningCount() int
}

type taskExecutionManager struct {
	mu          sync.Mutex
	running     map[int64]struct{}
	interrupted map[int64]struct{}
}

// NewTaskExecutionManager 创建一个新的任务执行管理器实例
func NewTaskExecutionManager() TaskExecutionManager {
	return &taskExecutionManager{
		running:     make(map[int64]struct{}),
		interrupted: make(map[int64]struct{}),
	}
}

// Register 登记一个开始执行的任务
func (m *taskExecutionManager) Register(taskID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running[taskID] = struct{}{}
	delete(m.interrupted, taskID)
}

// IsInterrupted 查询任务是否已被请求停止
func (m *taskExecutionManager) IsInterrupted(taskID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.interrupted[taskID]
	return ok
}

// Stop 请求停止一个正在运行的任务
func (m *taskExecutionManager) Stop(taskID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.running[taskID]; !ok {
		return false
	}
	m.interrupted[taskID] = struct{}{}
	return true
}

// Complete 注销任务并清理其中断标志
func (m *taskExecutionManager) Complete(taskID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.running, taskID)
	delete(m.interrupted, taskID)
}

// IsRunning 查询任务当前是否登记为运行中
func (m *taskExecutionManager) IsRunning(taskID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.running[taskID]
	return ok
}

// RunningCount 返回当前登记为运行中的任务数量
func (m *taskExecutionManager) RunningCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.running)
}

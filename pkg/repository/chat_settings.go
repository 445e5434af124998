package repository

import (
	"sync"

	"github.com/jphacks/os-2412/pkg/domain"
)

type chatSettingsRepository struct {
	mu       sync.RWMutex
	settings map[int64]domain.ChatSettings
}

func NewChatSettingsRepository() *chatSettingsRepository {
	return &chatSettingsRepository{
		settings: make(map[int64]domain.ChatSettings),
	}
}

func (c *chatSettingsRepository) Get(chatID int64) domain.ChatSettings {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.settings[chatID]
}

// Update applies fn to the chat's settings atomically and returns the result.
func (c *chatSettingsRepository) Update(chatID int64, fn func(*domain.ChatSettings)) domain.ChatSettings {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.settings[chatID]
	fn(&s)
	c.settings[chatID] = s

	return s
}

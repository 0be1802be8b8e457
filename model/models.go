package model

// AllModels lists every table AutoMigrate manages.
func AllModels() []interface{} {
	return []interface{}{
		&Profile{},
		&Conversation{},
		&Message{},
		&AbuseEvent{},
		&RateLimitCounter{},
		&Notification{},
		&AuditLog{},
	}
}

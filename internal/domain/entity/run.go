package entity

import "time"

// RunStatus - статус прохождения тестирования или секции
type RunStatus string

const (
	StatusAssigned   RunStatus = "ASSIGNED" // тестирование назначено, не начато
	StatusPending    RunStatus = "PENDING"  // секция ждет своей очереди
	StatusInProgress RunStatus = "IN_PROGRESS"
	StatusCompleted  RunStatus = "COMPLETED"
	StatusSkipped    RunStatus = "SKIPPED"
)

// IsSettled - секция больше не изменится (завершена или пропущена)
func (s RunStatus) IsSettled() bool {
	return s == StatusCompleted || s == StatusSkipped
}

// Run хранит состояние одного адаптивного прохода.
// Встраивается и в Assessment, и в Section, колонки остаются плоскими.
type Run struct {
	Status         RunStatus  `gorm:"size:20;not null;index" json:"status"`
	TargetLevel    CEFRLevel  `gorm:"size:2;not null" json:"targetLevel"`
	QuestionsLimit int        `gorm:"not null" json:"questionsLimit"`
	TimeLimitMin   *int       `json:"timeLimitMin"`
	StartedAt      *time.Time `json:"startedAt"`
	ExpiresAt      *time.Time `json:"expiresAt"`
	CompletedAt    *time.Time `json:"completedAt"`
	Answers        AnswerList `gorm:"type:jsonb;not null;default:'[]'" json:"answers"`
}

// IsInProgress проверяет, что проход начат и не завершен
func (r *Run) IsInProgress() bool {
	return r.Status == StatusInProgress
}

// IsExpired проверяет, истекло ли время прохода на момент now
func (r *Run) IsExpired(now time.Time) bool {
	return r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}

// LimitReached - набрано нужное количество ответов
func (r *Run) LimitReached() bool {
	return len(r.Answers) >= r.QuestionsLimit
}

// Begin переводит проход в IN_PROGRESS.
// startedAt и expiresAt выставляются только один раз.
func (r *Run) Begin(now time.Time) {
	r.Status = StatusInProgress
	if r.StartedAt == nil {
		started := now
		r.StartedAt = &started
	}
	if r.ExpiresAt == nil && r.TimeLimitMin != nil && *r.TimeLimitMin > 0 {
		expires := r.StartedAt.Add(time.Duration(*r.TimeLimitMin) * time.Minute)
		r.ExpiresAt = &expires
	}
}

// Finish переводит проход в терминальный статус
func (r *Run) Finish(status RunStatus, now time.Time) {
	r.Status = status
	completed := now
	r.CompletedAt = &completed
}

// TimeRemaining возвращает оставшееся время или nil для теста без ограничения
func (r *Run) TimeRemaining(now time.Time) *time.Duration {
	if r.ExpiresAt == nil {
		return nil
	}
	left := r.ExpiresAt.Sub(now)
	if left < 0 {
		left = 0
	}
	return &left
}

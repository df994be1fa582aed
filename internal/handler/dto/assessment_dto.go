package dto

import (
	"time"

	"github.com/yourusername/placement-api/internal/domain/entity"
	"github.com/yourusername/placement-api/internal/service"
)

// AssignAssessmentRequest - запрос на назначение тестирования
type AssignAssessmentRequest struct {
	StudentID      uint   `json:"studentId" binding:"required"`
	Language       string `json:"language" binding:"required,min=2,max=10"`
	Type           string `json:"type" binding:"required,oneof=PLACEMENT PROGRESS FINAL"`
	IsMultiSkill   bool   `json:"isMultiSkill"`
	TargetLevel    string `json:"targetLevel" binding:"omitempty,oneof=A1 A2 B1 B2 C1 C2"`
	QuestionsLimit int    `json:"questionsLimit" binding:"omitempty,min=1,max=200"`
	TimeLimitMin   *int   `json:"timeLimitMin" binding:"omitempty,min=1,max=600"`
}

// ToService преобразует запрос в параметры сервиса
func (r AssignAssessmentRequest) ToService() service.AssignRequest {
	return service.AssignRequest{
		StudentID:      r.StudentID,
		Language:       r.Language,
		Type:           entity.AssessmentType(r.Type),
		IsMultiSkill:   r.IsMultiSkill,
		TargetLevel:    entity.CEFRLevel(r.TargetLevel),
		QuestionsLimit: r.QuestionsLimit,
		TimeLimitMin:   r.TimeLimitMin,
	}
}

// SubmitAnswerRequest - ответ на вопрос
type SubmitAnswerRequest struct {
	QuestionID uint   `json:"questionId" binding:"required"`
	Answer     string `json:"answer" binding:"max=10000"`
}

// ViolationRequest - событие прокторинга
type ViolationRequest struct {
	Type    string `json:"type" binding:"required,max=64"`
	Details string `json:"details" binding:"max=1000"`
}

// ScoreRequest - оценка субъективной секции (AI или преподаватель)
type ScoreRequest struct {
	Overall   float64            `json:"overall" binding:"min=0"`
	CEFRLevel string             `json:"cefrLevel" binding:"required,oneof=A1 A2 B1 B2 C1 C2"`
	Criteria  map[string]float64 `json:"criteria"`
	Feedback  string             `json:"feedback" binding:"max=5000"`
}

// ToScoreBlob преобразует запрос в оценку секции
func (r ScoreRequest) ToScoreBlob() entity.ScoreBlob {
	return entity.ScoreBlob{
		Overall:   r.Overall,
		CEFRLevel: entity.CEFRLevel(r.CEFRLevel),
		Criteria:  r.Criteria,
		Feedback:  r.Feedback,
	}
}

// QuestionResponse - вопрос для клиента. Правильный ответ не передается.
type QuestionResponse struct {
	ID           uint             `json:"id"`
	Language     string           `json:"language"`
	CEFRLevel    entity.CEFRLevel `json:"cefrLevel"`
	Skill        *entity.Skill    `json:"skill,omitempty"`
	QuestionType string           `json:"questionType"`
	Text         string           `json:"text"`
	Options      []string         `json:"options"`
	MediaURL     string           `json:"mediaUrl,omitempty"`
	Points       int              `json:"points"`
}

// NewQuestionResponse создает DTO для вопроса
func NewQuestionResponse(q *entity.Question) *QuestionResponse {
	if q == nil {
		return nil
	}
	options := []string(q.Options)
	if options == nil {
		options = []string{}
	}
	return &QuestionResponse{
		ID:           q.ID,
		Language:     q.Language,
		CEFRLevel:    q.CEFRLevel,
		Skill:        q.Skill,
		QuestionType: q.QuestionType,
		Text:         q.Text,
		Options:      options,
		MediaURL:     q.MediaURL,
		Points:       q.Points,
	}
}

// NextItemResponse - ответ на запрос следующего вопроса
type NextItemResponse struct {
	Question         *QuestionResponse `json:"question"`
	IsComplete       bool              `json:"isComplete"`
	Expired          bool              `json:"expired"`
	TargetLevel      entity.CEFRLevel  `json:"targetLevel"`
	AnsweredCount    int               `json:"answeredCount"`
	QuestionsLimit   int               `json:"questionsLimit"`
	TimeRemainingSec *int64            `json:"timeRemainingSec"`
}

// NewNextItemResponse создает DTO из результата сервиса
func NewNextItemResponse(r *service.NextItemResult) *NextItemResponse {
	resp := &NextItemResponse{
		Question:       NewQuestionResponse(r.Question),
		IsComplete:     r.IsComplete,
		Expired:        r.Expired,
		TargetLevel:    r.TargetLevel,
		AnsweredCount:  r.AnsweredCount,
		QuestionsLimit: r.QuestionsLimit,
	}
	if r.TimeRemaining != nil {
		sec := int64(r.TimeRemaining.Seconds())
		resp.TimeRemainingSec = &sec
	}
	return resp
}

// SubmitAnswerResponse - результат проверки ответа
type SubmitAnswerResponse struct {
	IsCorrect          bool   `json:"isCorrect"`
	CorrectAnswer      string `json:"correctAnswer,omitempty"`
	PointsEarned       int    `json:"pointsEarned"`
	ShouldAutoComplete bool   `json:"shouldAutoComplete"`
	Expired            bool   `json:"expired"`
	AnsweredCount      int    `json:"answeredCount"`
}

// NewSubmitAnswerResponse создает DTO из результата сервиса
func NewSubmitAnswerResponse(r *service.SubmitResult) *SubmitAnswerResponse {
	return &SubmitAnswerResponse{
		IsCorrect:          r.IsCorrect,
		CorrectAnswer:      r.CorrectAnswer,
		PointsEarned:       r.PointsEarned,
		ShouldAutoComplete: r.ShouldAutoComplete,
		Expired:            r.Expired,
		AnsweredCount:      r.AnsweredCount,
	}
}

// SectionResponse - секция multi-skill тестирования
type SectionResponse struct {
	ID              uint              `json:"id"`
	AssessmentID    uint              `json:"assessmentId"`
	Skill           entity.Skill      `json:"skill"`
	OrderIndex      int               `json:"orderIndex"`
	Status          entity.RunStatus  `json:"status"`
	TargetLevel     entity.CEFRLevel  `json:"targetLevel"`
	QuestionsLimit  int               `json:"questionsLimit"`
	TimeLimitMin    *int              `json:"timeLimitMin"`
	StartedAt       *time.Time        `json:"startedAt"`
	ExpiresAt       *time.Time        `json:"expiresAt"`
	CompletedAt     *time.Time        `json:"completedAt"`
	AnsweredCount   int               `json:"answeredCount"`
	RawScore        *int              `json:"rawScore"`
	MaxScore        *int              `json:"maxScore"`
	PercentageScore *int              `json:"percentageScore"`
	CEFRLevel       *entity.CEFRLevel `json:"cefrLevel"`
	AIScore         *entity.ScoreBlob `json:"aiScore,omitempty"`
	TeacherScore    *entity.ScoreBlob `json:"teacherScore,omitempty"`
	FinalScore      *entity.ScoreBlob `json:"finalScore,omitempty"`
}

// NewSectionResponse создает DTO для секции
func NewSectionResponse(s *entity.Section) *SectionResponse {
	return &SectionResponse{
		ID:              s.ID,
		AssessmentID:    s.AssessmentID,
		Skill:           s.Skill,
		OrderIndex:      s.OrderIndex,
		Status:          s.Status,
		TargetLevel:     s.TargetLevel,
		QuestionsLimit:  s.QuestionsLimit,
		TimeLimitMin:    s.TimeLimitMin,
		StartedAt:       s.StartedAt,
		ExpiresAt:       s.ExpiresAt,
		CompletedAt:     s.CompletedAt,
		AnsweredCount:   len(s.Answers),
		RawScore:        s.RawScore,
		MaxScore:        s.MaxScore,
		PercentageScore: s.PercentageScore,
		CEFRLevel:       s.CEFRLevel,
		AIScore:         s.AIScore,
		TeacherScore:    s.TeacherScore,
		FinalScore:      s.FinalScore,
	}
}

// AssessmentResponse - тестирование в формате для клиента
type AssessmentResponse struct {
	ID             uint                  `json:"id"`
	StudentID      uint                  `json:"studentId"`
	Language       string                `json:"language"`
	Type           entity.AssessmentType `json:"type"`
	IsMultiSkill   bool                  `json:"isMultiSkill"`
	Status         entity.RunStatus      `json:"status"`
	TargetLevel    entity.CEFRLevel      `json:"targetLevel"`
	QuestionsLimit int                   `json:"questionsLimit"`
	TimeLimitMin   *int                  `json:"timeLimitMin"`
	StartedAt      *time.Time            `json:"startedAt"`
	ExpiresAt      *time.Time            `json:"expiresAt"`
	CompletedAt    *time.Time            `json:"completedAt"`
	Answers        entity.AnswerList     `json:"answers"`
	Violations     entity.ViolationList  `json:"violations"`
	Score          *int                  `json:"score"`
	CEFRLevel      *entity.CEFRLevel     `json:"cefrLevel"`
	ReadingLevel   *entity.CEFRLevel     `json:"readingLevel"`
	ListeningLevel *entity.CEFRLevel     `json:"listeningLevel"`
	WritingLevel   *entity.CEFRLevel     `json:"writingLevel"`
	SpeakingLevel  *entity.CEFRLevel     `json:"speakingLevel"`
	Sections       []*SectionResponse    `json:"sections,omitempty"`
	CreatedAt      time.Time             `json:"createdAt"`
}

// NewAssessmentResponse создает DTO для тестирования
func NewAssessmentResponse(a *entity.Assessment) *AssessmentResponse {
	resp := &AssessmentResponse{
		ID:             a.ID,
		StudentID:      a.StudentID,
		Language:       a.Language,
		Type:           a.Type,
		IsMultiSkill:   a.IsMultiSkill,
		Status:         a.Status,
		TargetLevel:    a.TargetLevel,
		QuestionsLimit: a.QuestionsLimit,
		TimeLimitMin:   a.TimeLimitMin,
		StartedAt:      a.StartedAt,
		ExpiresAt:      a.ExpiresAt,
		CompletedAt:    a.CompletedAt,
		Answers:        a.Answers,
		Violations:     a.Violations,
		Score:          a.Score,
		CEFRLevel:      a.CEFRLevel,
		ReadingLevel:   a.ReadingLevel,
		ListeningLevel: a.ListeningLevel,
		WritingLevel:   a.WritingLevel,
		SpeakingLevel:  a.SpeakingLevel,
		CreatedAt:      a.CreatedAt,
	}
	if resp.Answers == nil {
		resp.Answers = entity.AnswerList{}
	}
	if resp.Violations == nil {
		resp.Violations = entity.ViolationList{}
	}
	for i := range a.Sections {
		resp.Sections = append(resp.Sections, NewSectionResponse(&a.Sections[i]))
	}
	return resp
}

// PaginatedAssessmentResponse - страница тестирований студента
type PaginatedAssessmentResponse struct {
	Assessments []*AssessmentResponse `json:"assessments"`
	Total       int64                 `json:"total"`
	Page        int                   `json:"page"`
	PerPage     int                   `json:"perPage"`
}

// NewPaginatedAssessmentResponse создает DTO для страницы тестирований
func NewPaginatedAssessmentResponse(items []entity.Assessment, total int64, page, perPage int) *PaginatedAssessmentResponse {
	resp := &PaginatedAssessmentResponse{
		Assessments: make([]*AssessmentResponse, 0, len(items)),
		Total:       total,
		Page:        page,
		PerPage:     perPage,
	}
	for i := range items {
		resp.Assessments = append(resp.Assessments, NewAssessmentResponse(&items[i]))
	}
	return resp
}

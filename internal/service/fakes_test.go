package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/placement-api/internal/domain/entity"
	"github.com/yourusername/placement-api/internal/domain/repository"
	apperrors "github.com/yourusername/placement-api/internal/pkg/errors"
	"github.com/yourusername/placement-api/internal/service/placement"
)

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

var (
	student = Actor{UserID: 7, Role: RoleStudent}
	teacher = Actor{UserID: 100, Role: RoleTeacher}
	other   = Actor{UserID: 8, Role: RoleStudent}
	scorer  = Actor{UserID: 500, Role: RoleService}
)

// ============================================================================
// In-memory репозитории
// ============================================================================

type memoryStore struct {
	mu          sync.Mutex
	nextID      uint
	assessments map[uint]entity.Assessment
	sections    map[uint]entity.Section
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		assessments: make(map[uint]entity.Assessment),
		sections:    make(map[uint]entity.Section),
	}
}

func (s *memoryStore) id() uint {
	s.nextID++
	return s.nextID
}

func cloneRun(run entity.Run) entity.Run {
	run.Answers = append(entity.AnswerList{}, run.Answers...)
	return run
}

func cloneSection(sec entity.Section) entity.Section {
	sec.Run = cloneRun(sec.Run)
	return sec
}

func cloneAssessment(a entity.Assessment) entity.Assessment {
	a.Run = cloneRun(a.Run)
	a.Violations = append(entity.ViolationList{}, a.Violations...)
	a.Sections = nil
	return a
}

type fakeAssessmentRepo struct {
	store *memoryStore
	// updateErr имитирует сбой записи тестирования
	updateErr error
}

func (r *fakeAssessmentRepo) Create(ctx context.Context, a *entity.Assessment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	a.ID = r.store.id()
	a.Version = 1
	for i := range a.Sections {
		a.Sections[i].ID = r.store.id()
		a.Sections[i].AssessmentID = a.ID
		a.Sections[i].Version = 1
		r.store.sections[a.Sections[i].ID] = cloneSection(a.Sections[i])
	}
	r.store.assessments[a.ID] = cloneAssessment(*a)
	return nil
}

func (r *fakeAssessmentRepo) GetByID(ctx context.Context, id uint) (*entity.Assessment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	a, ok := r.store.assessments[id]
	if !ok {
		return nil, fmt.Errorf("%w: assessment %d", apperrors.ErrNotFound, id)
	}
	copied := cloneAssessment(a)
	return &copied, nil
}

func (r *fakeAssessmentRepo) GetWithSections(ctx context.Context, id uint) (*entity.Assessment, error) {
	a, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, sec := range r.store.sections {
		if sec.AssessmentID == id {
			a.Sections = append(a.Sections, cloneSection(sec))
		}
	}
	sort.Slice(a.Sections, func(i, j int) bool { return a.Sections[i].OrderIndex < a.Sections[j].OrderIndex })
	return a, nil
}

func (r *fakeAssessmentRepo) ListByStudent(ctx context.Context, studentID uint, limit, offset int) ([]entity.Assessment, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var all []entity.Assessment
	for _, a := range r.store.assessments {
		if a.StudentID == studentID {
			all = append(all, cloneAssessment(a))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := int64(len(all))
	if offset >= len(all) {
		return []entity.Assessment{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (r *fakeAssessmentRepo) ListCompleted(ctx context.Context, filter repository.AssessmentExportFilter) ([]entity.Assessment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var result []entity.Assessment
	for _, a := range r.store.assessments {
		if a.Status == entity.StatusCompleted && (filter.Language == "" || a.Language == filter.Language) {
			result = append(result, cloneAssessment(a))
		}
	}
	return result, nil
}

func (r *fakeAssessmentRepo) Update(ctx context.Context, a *entity.Assessment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.update(a)
}

// UpdateWithSection пишет обе записи или ни одной
func (r *fakeAssessmentRepo) UpdateWithSection(ctx context.Context, a *entity.Assessment, sec *entity.Section) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	stored, ok := r.store.sections[sec.ID]
	if !ok {
		return fmt.Errorf("%w: section %d", apperrors.ErrNotFound, sec.ID)
	}
	if stored.Version != sec.Version {
		return fmt.Errorf("%w: section %d", apperrors.ErrConflict, sec.ID)
	}
	if err := r.update(a); err != nil {
		return err
	}
	sec.Version++
	r.store.sections[sec.ID] = cloneSection(*sec)
	return nil
}

func (r *fakeAssessmentRepo) update(a *entity.Assessment) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	stored, ok := r.store.assessments[a.ID]
	if !ok {
		return fmt.Errorf("%w: assessment %d", apperrors.ErrNotFound, a.ID)
	}
	if stored.Version != a.Version {
		return fmt.Errorf("%w: assessment %d", apperrors.ErrConflict, a.ID)
	}
	a.Version++
	r.store.assessments[a.ID] = cloneAssessment(*a)
	return nil
}

// stored возвращает сохранённое состояние в обход сервиса
func (r *fakeAssessmentRepo) stored(id uint) entity.Assessment {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return cloneAssessment(r.store.assessments[id])
}

type fakeSectionRepo struct {
	store *memoryStore
}

func (r *fakeSectionRepo) GetByID(ctx context.Context, id uint) (*entity.Section, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	sec, ok := r.store.sections[id]
	if !ok {
		return nil, fmt.Errorf("%w: section %d", apperrors.ErrNotFound, id)
	}
	copied := cloneSection(sec)
	return &copied, nil
}

func (r *fakeSectionRepo) ListByAssessment(ctx context.Context, assessmentID uint) ([]entity.Section, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var result []entity.Section
	for _, sec := range r.store.sections {
		if sec.AssessmentID == assessmentID {
			result = append(result, cloneSection(sec))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].OrderIndex < result[j].OrderIndex })
	return result, nil
}

func (r *fakeSectionRepo) Update(ctx context.Context, sec *entity.Section) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	stored, ok := r.store.sections[sec.ID]
	if !ok {
		return fmt.Errorf("%w: section %d", apperrors.ErrNotFound, sec.ID)
	}
	if stored.Version != sec.Version {
		return fmt.Errorf("%w: section %d", apperrors.ErrConflict, sec.ID)
	}
	sec.Version++
	r.store.sections[sec.ID] = cloneSection(*sec)
	return nil
}

func (r *fakeSectionRepo) stored(id uint) entity.Section {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return cloneSection(r.store.sections[id])
}

// fakeQuestionBank - банк вопросов с семантикой фильтров postgres-репозитория
type fakeQuestionBank struct {
	questions []entity.Question
}

func (b *fakeQuestionBank) add(q entity.Question) {
	q.ID = uint(len(b.questions) + 1)
	if q.Language == "" {
		q.Language = "en"
	}
	if q.Points == 0 {
		q.Points = 1
	}
	if q.CorrectAnswer == "" {
		q.CorrectAnswer = "ok"
	}
	q.IsActive = true
	b.questions = append(b.questions, q)
}

func (b *fakeQuestionBank) GetByID(ctx context.Context, id uint) (*entity.Question, error) {
	for i := range b.questions {
		if b.questions[i].ID == id {
			q := b.questions[i]
			return &q, nil
		}
	}
	return nil, fmt.Errorf("%w: question %d", apperrors.ErrNotFound, id)
}

func (b *fakeQuestionBank) FindFirst(ctx context.Context, f repository.QuestionFilter) (*entity.Question, error) {
	excluded := make(map[uint]bool, len(f.ExcludeIDs))
	for _, id := range f.ExcludeIDs {
		excluded[id] = true
	}

	var candidates []entity.Question
	for _, q := range b.questions {
		if !q.IsActive || q.Language != f.Language || excluded[q.ID] {
			continue
		}
		if f.Level != nil && q.CEFRLevel != *f.Level {
			continue
		}
		if f.Skill != nil {
			matches := q.Skill != nil && *q.Skill == *f.Skill
			if !matches && !(f.IncludeSkillAgnostic && q.Skill == nil) {
				continue
			}
		}
		candidates = append(candidates, q)
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].OrderIndex != candidates[j].OrderIndex {
			return candidates[i].OrderIndex < candidates[j].OrderIndex
		}
		return candidates[i].ID < candidates[j].ID
	})
	q := candidates[0]
	return &q, nil
}

func (b *fakeQuestionBank) CountActiveByLevel(ctx context.Context, language string) (map[entity.CEFRLevel]int64, error) {
	counts := make(map[entity.CEFRLevel]int64)
	for _, q := range b.questions {
		if q.IsActive && q.Language == language {
			counts[q.CEFRLevel]++
		}
	}
	return counts, nil
}

// fakePublisher запоминает поставленные в очередь события
type fakePublisher struct {
	mu     sync.Mutex
	events []*entity.OutboxEvent
	err    error
}

func (p *fakePublisher) Enqueue(ctx context.Context, event *entity.OutboxEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) ofType(eventType string) []*entity.OutboxEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var result []*entity.OutboxEvent
	for _, e := range p.events {
		if e.Type == eventType {
			result = append(result, e)
		}
	}
	return result
}

// ============================================================================
// Сборка сервисов
// ============================================================================

type testEnv struct {
	store       *memoryStore
	assessments *fakeAssessmentRepo
	sections    *fakeSectionRepo
	bank        *fakeQuestionBank
	events      *fakePublisher
	assessment  *AssessmentService
	section     *SectionService
}

func newTestEnv() *testEnv {
	store := newMemoryStore()
	env := &testEnv{
		store:       store,
		assessments: &fakeAssessmentRepo{store: store},
		sections:    &fakeSectionRepo{store: store},
		bank:        &fakeQuestionBank{},
		events:      &fakePublisher{},
	}

	logger := zap.NewNop()
	engine := placement.NewEngine(placement.DefaultLevelConfig(), &placement.Dependencies{
		QuestionRepo: env.bank,
		Logger:       logger,
	})
	locker := NewLocalLocker()

	env.assessment = NewAssessmentService(env.assessments, engine, placement.DefaultConfig(), env.events, locker, logger)
	env.section = NewSectionService(env.assessments, env.sections, engine, placement.NewResultAggregator(), env.events, locker, logger)
	return env
}

// seedLevels добавляет по n вопросов каждого уровня для навыка (nil - без навыка)
func (env *testEnv) seedLevels(skill *entity.Skill, n int) {
	for _, level := range entity.CEFRLevels {
		for i := 0; i < n; i++ {
			env.bank.add(entity.Question{CEFRLevel: level, Skill: skill, OrderIndex: i, QuestionType: entity.QuestionTypeMultipleChoice})
		}
	}
}

func minutesLater(m int) time.Time {
	return testNow.Add(time.Duration(m) * time.Minute)
}

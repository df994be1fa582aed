package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/placement-api/internal/domain/entity"
	apperrors "github.com/yourusername/placement-api/internal/pkg/errors"
)

func assignMulti(t *testing.T, env *testEnv) *entity.Assessment {
	t.Helper()
	a, err := env.assessment.Assign(context.Background(), teacher, AssignRequest{
		StudentID:    student.UserID,
		Language:     "en",
		IsMultiSkill: true,
	}, testNow)
	require.NoError(t, err)
	require.Len(t, a.Sections, 4)
	return a
}

// sectionIDs возвращает ID секций в порядке Reading, Listening, Writing, Speaking
func sectionIDs(a *entity.Assessment) (reading, listening, writing, speaking uint) {
	return a.Sections[0].ID, a.Sections[1].ID, a.Sections[2].ID, a.Sections[3].ID
}

func skillPtr(s entity.Skill) *entity.Skill {
	return &s
}

// ============================================================================
// Порядок секций
// ============================================================================

func TestSectionStart_OutOfOrder(t *testing.T) {
	env := newTestEnv()
	a := assignMulti(t, env)
	_, listening, _, _ := sectionIDs(a)

	_, err := env.section.Start(context.Background(), student, listening, testNow)

	assert.True(t, errors.Is(err, apperrors.ErrOutOfOrder), "Listening нельзя начать до завершения Reading")
	assert.Equal(t, entity.StatusPending, env.sections.stored(listening).Status)
}

func TestSectionStart_StartsAssessment(t *testing.T) {
	env := newTestEnv()
	a := assignMulti(t, env)
	reading, _, _, _ := sectionIDs(a)

	sec, err := env.section.Start(context.Background(), student, reading, testNow)

	require.NoError(t, err)
	assert.Equal(t, entity.StatusInProgress, sec.Status)
	require.NotNil(t, sec.ExpiresAt)
	assert.Equal(t, minutesLater(20), *sec.ExpiresAt, "Таймер Reading - 20 минут")
	assert.Equal(t, entity.StatusInProgress, env.assessments.stored(a.ID).Status)
}

func TestSectionStart_AccessDenied(t *testing.T) {
	env := newTestEnv()
	a := assignMulti(t, env)
	reading, _, _, _ := sectionIDs(a)

	_, err := env.section.Start(context.Background(), other, reading, testNow)

	assert.True(t, errors.Is(err, apperrors.ErrAccessDenied))
}

func TestSectionStart_NotFound(t *testing.T) {
	env := newTestEnv()

	_, err := env.section.Start(context.Background(), student, 12345, testNow)

	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestSkip_RequiresStartedSection(t *testing.T) {
	env := newTestEnv()
	a := assignMulti(t, env)
	reading, _, _, _ := sectionIDs(a)
	ctx := context.Background()

	_, err := env.section.Skip(ctx, student, reading, testNow)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidState), "Неначатую секцию пропустить нельзя")
	assert.Equal(t, entity.StatusPending, env.sections.stored(reading).Status)

	_, err = env.section.Start(ctx, student, reading, testNow)
	require.NoError(t, err)
	skipped, err := env.section.Skip(ctx, student, reading, minutesLater(1))
	require.NoError(t, err)
	assert.Equal(t, entity.StatusSkipped, skipped.Status)

	_, err = env.section.Skip(ctx, student, reading, minutesLater(2))
	assert.True(t, errors.Is(err, apperrors.ErrInvalidState), "Повторный пропуск запрещён")
}

// startAndSkip начинает и сразу пропускает секцию
func startAndSkip(t *testing.T, env *testEnv, sectionID uint, at time.Time) {
	t.Helper()
	ctx := context.Background()
	_, err := env.section.Start(ctx, student, sectionID, at)
	require.NoError(t, err)
	_, err = env.section.Skip(ctx, student, sectionID, at)
	require.NoError(t, err)
}

// ============================================================================
// Адаптивный цикл секции
// ============================================================================

func TestSectionNextItem_UsesSectionSkill(t *testing.T) {
	env := newTestEnv()
	env.seedLevels(skillPtr(entity.SkillListening), 2)
	env.seedLevels(skillPtr(entity.SkillReading), 2)
	a := assignMulti(t, env)
	reading, _, _, _ := sectionIDs(a)
	ctx := context.Background()
	_, err := env.section.Start(ctx, student, reading, testNow)
	require.NoError(t, err)

	next, err := env.section.NextItem(ctx, student, reading, minutesLater(1))

	require.NoError(t, err)
	require.NotNil(t, next.Question)
	require.NotNil(t, next.Question.Skill)
	assert.Equal(t, entity.SkillReading, *next.Question.Skill)
	assert.Equal(t, entity.LevelA2, next.Question.CEFRLevel)
	require.NotNil(t, next.TimeRemaining)
	assert.Equal(t, 19*60.0, next.TimeRemaining.Seconds())
}

func TestSectionExpiry_AutoCompletes(t *testing.T) {
	env := newTestEnv()
	env.seedLevels(skillPtr(entity.SkillReading), 2)
	a := assignMulti(t, env)
	reading, _, _, _ := sectionIDs(a)
	ctx := context.Background()
	_, err := env.section.Start(ctx, student, reading, testNow)
	require.NoError(t, err)

	res, err := env.section.SubmitAnswer(ctx, student, reading, 1, "ok", minutesLater(21))

	require.NoError(t, err)
	assert.True(t, res.Expired)
	stored := env.sections.stored(reading)
	assert.Equal(t, entity.StatusCompleted, stored.Status)
	assert.Empty(t, stored.Answers)
	require.NotNil(t, stored.CEFRLevel)
	assert.Equal(t, entity.LevelA1, *stored.CEFRLevel)
	assert.NotEqual(t, entity.StatusCompleted, env.assessments.stored(a.ID).Status,
		"Остальные секции не завершены, итога нет")
}

// ============================================================================
// Агрегация
// ============================================================================

func TestMultiSkillFlow_AggregatesAndRescores(t *testing.T) {
	env := newTestEnv()
	env.seedLevels(skillPtr(entity.SkillReading), 2)
	a := assignMulti(t, env)
	reading, listening, writing, speaking := sectionIDs(a)
	ctx := context.Background()

	// Reading: один правильный ответ на A2
	_, err := env.section.Start(ctx, student, reading, testNow)
	require.NoError(t, err)
	next, err := env.section.NextItem(ctx, student, reading, minutesLater(1))
	require.NoError(t, err)
	_, err = env.section.SubmitAnswer(ctx, student, reading, next.Question.ID, "ok", minutesLater(2))
	require.NoError(t, err)
	readingSec, err := env.section.Complete(ctx, student, reading, minutesLater(3))
	require.NoError(t, err)
	assert.Equal(t, 100, *readingSec.PercentageScore)
	assert.Equal(t, 1, *readingSec.RawScore, "Вес A2 равен 1")
	assert.Equal(t, 1, *readingSec.MaxScore)

	// Listening пропущена, Writing завершена без оценки, Speaking пропущена
	startAndSkip(t, env, listening, minutesLater(4))
	_, err = env.section.Start(ctx, student, writing, minutesLater(5))
	require.NoError(t, err)
	writingSec, err := env.section.Complete(ctx, student, writing, minutesLater(6))
	require.NoError(t, err)
	assert.Nil(t, writingSec.CEFRLevel, "Уровень Writing появится после оценки")
	assert.Nil(t, writingSec.PercentageScore)
	require.Len(t, env.events.ofType(entity.EventAIScoringRequested), 1)
	assert.Equal(t, entity.SkillWriting, *env.events.ofType(entity.EventAIScoringRequested)[0].Payload.Skill)

	assert.Empty(t, env.events.ofType(entity.EventResultsReady), "Итога нет, пока Speaking не завершена")
	startAndSkip(t, env, speaking, minutesLater(7))

	// Итог по одной секции с уровнем
	stored := env.assessments.stored(a.ID)
	assert.Equal(t, entity.StatusCompleted, stored.Status)
	assert.Equal(t, entity.LevelA2, *stored.CEFRLevel)
	assert.Equal(t, 100, *stored.Score)
	assert.Equal(t, entity.LevelA2, *stored.ReadingLevel)
	assert.Nil(t, stored.ListeningLevel)
	assert.Nil(t, stored.WritingLevel)
	assert.Nil(t, stored.SpeakingLevel)
	firstCompletedAt := *stored.CompletedAt
	assert.Len(t, env.events.ofType(entity.EventResultsReady), 1)
	assert.Len(t, env.events.ofType(entity.EventCertificateRequest), 1)
	assert.Len(t, env.events.ofType(entity.EventProfileLevelUpdate), 1)

	// Оценка AI для Writing пересчитывает итог: (A2 + B2) / 2 = B1
	_, err = env.section.ApplyAIScore(ctx, scorer, writing, entity.ScoreBlob{Overall: 7.5, CEFRLevel: entity.LevelB2}, minutesLater(30))
	require.NoError(t, err)

	stored = env.assessments.stored(a.ID)
	assert.Equal(t, entity.LevelB1, *stored.CEFRLevel)
	assert.Equal(t, 50, *stored.Score, "Секция без процента входит в делитель")
	assert.Equal(t, entity.LevelB2, *stored.WritingLevel)
	assert.Equal(t, firstCompletedAt, *stored.CompletedAt, "Дата завершения не меняется при пересчёте")
	assert.Len(t, env.events.ofType(entity.EventResultsReady), 2, "Уровень изменился - результаты отправляются снова")
	assert.Len(t, env.events.ofType(entity.EventCertificateRequest), 2)

	// Преподаватель подтверждает B2: уровень не меняется, событий нет
	reviewed, err := env.section.ApplyTeacherReview(ctx, teacher, writing, entity.ScoreBlob{Overall: 7, CEFRLevel: entity.LevelB2}, minutesLater(60))
	require.NoError(t, err)
	require.NotNil(t, reviewed.FinalScore.ReviewerID)
	assert.Equal(t, teacher.UserID, *reviewed.FinalScore.ReviewerID)
	assert.Len(t, env.events.ofType(entity.EventResultsReady), 2)

	// Оценка преподавателя приоритетнее повторной оценки AI
	_, err = env.section.ApplyAIScore(ctx, scorer, writing, entity.ScoreBlob{Overall: 3, CEFRLevel: entity.LevelA1}, minutesLater(70))
	require.NoError(t, err)
	assert.Equal(t, entity.LevelB2, *env.sections.stored(writing).CEFRLevel)
}

func TestApplyScore_Permissions(t *testing.T) {
	env := newTestEnv()
	a := assignMulti(t, env)
	reading, _, writing, _ := sectionIDs(a)
	ctx := context.Background()
	blob := entity.ScoreBlob{Overall: 5, CEFRLevel: entity.LevelB1}

	_, err := env.section.ApplyAIScore(ctx, student, writing, blob, testNow)
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))

	_, err = env.section.ApplyTeacherReview(ctx, scorer, writing, blob, testNow)
	assert.True(t, errors.Is(err, apperrors.ErrForbidden), "Сервис оценки не может ставить оценку преподавателя")

	_, err = env.section.ApplyAIScore(ctx, scorer, writing, blob, testNow)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidState), "Незавершённую секцию оценивать нельзя")

	_, err = env.section.ApplyAIScore(ctx, scorer, writing, entity.ScoreBlob{CEFRLevel: "Z9"}, testNow)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	startAndSkip(t, env, reading, testNow)
	_, err = env.section.ApplyTeacherReview(ctx, teacher, reading, blob, testNow)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidState), "Пропущенную секцию оценивать нельзя")
}

func TestApplyAIScore_ObjectiveSectionRejected(t *testing.T) {
	env := newTestEnv()
	a := assignMulti(t, env)
	reading, _, _, _ := sectionIDs(a)
	ctx := context.Background()
	_, err := env.section.Start(ctx, student, reading, testNow)
	require.NoError(t, err)
	_, err = env.section.Complete(ctx, student, reading, minutesLater(1))
	require.NoError(t, err)

	_, err = env.section.ApplyAIScore(ctx, scorer, reading, entity.ScoreBlob{Overall: 5, CEFRLevel: entity.LevelC1}, minutesLater(2))

	assert.True(t, errors.Is(err, apperrors.ErrInvalidState))
}

func TestMultiSkill_AllSectionsSkipped(t *testing.T) {
	env := newTestEnv()
	a := assignMulti(t, env)
	reading, listening, writing, speaking := sectionIDs(a)

	for i, id := range []uint{reading, listening, writing, speaking} {
		startAndSkip(t, env, id, minutesLater(i))
	}

	stored := env.assessments.stored(a.ID)
	assert.Equal(t, entity.StatusCompleted, stored.Status)
	require.NotNil(t, stored.StartedAt, "Тестирование начато вместе с первой секцией")
	assert.Equal(t, testNow, *stored.StartedAt)
	require.NotNil(t, stored.CEFRLevel)
	assert.Equal(t, entity.LevelA1, *stored.CEFRLevel, "Без оценённых секций уровень по умолчанию A1")
	assert.Equal(t, 0, *stored.Score)

	assert.Len(t, env.events.ofType(entity.EventResultsReady), 1)
	assert.Empty(t, env.events.ofType(entity.EventProfileLevelUpdate), "Уровень в профиле не перезаписывается")
	assert.Empty(t, env.events.ofType(entity.EventCertificateRequest), "Сертификат без оценённых секций не выдаётся")
}

func TestSectionComplete_AggregationFailureKeepsSectionOpen(t *testing.T) {
	env := newTestEnv()
	a := assignMulti(t, env)
	reading, listening, writing, speaking := sectionIDs(a)
	ctx := context.Background()

	_, err := env.section.Start(ctx, student, reading, testNow)
	require.NoError(t, err)
	_, err = env.section.Complete(ctx, student, reading, minutesLater(1))
	require.NoError(t, err)
	startAndSkip(t, env, listening, minutesLater(2))
	startAndSkip(t, env, writing, minutesLater(3))
	_, err = env.section.Start(ctx, student, speaking, minutesLater(4))
	require.NoError(t, err)

	// Act: запись итога тестирования падает
	env.assessments.updateErr = errors.New("connection reset")
	_, err = env.section.Complete(ctx, student, speaking, minutesLater(5))

	// Assert: секция и тестирование не изменились
	require.Error(t, err)
	assert.Equal(t, entity.StatusInProgress, env.sections.stored(speaking).Status)
	assert.Equal(t, entity.StatusInProgress, env.assessments.stored(a.ID).Status)
	assert.Empty(t, env.events.ofType(entity.EventResultsReady))

	// Повторное завершение после восстановления базы подводит итог
	env.assessments.updateErr = nil
	completed, err := env.section.Complete(ctx, student, speaking, minutesLater(6))
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCompleted, completed.Status)
	assert.Equal(t, entity.StatusCompleted, env.assessments.stored(a.ID).Status)
	assert.Len(t, env.events.ofType(entity.EventResultsReady), 1)
}

func TestSectionStart_AssessmentWriteFailureKeepsSectionPending(t *testing.T) {
	env := newTestEnv()
	a := assignMulti(t, env)
	reading, _, _, _ := sectionIDs(a)
	env.assessments.updateErr = errors.New("connection reset")

	_, err := env.section.Start(context.Background(), student, reading, testNow)

	require.Error(t, err)
	assert.Equal(t, entity.StatusPending, env.sections.stored(reading).Status)
	assert.Equal(t, entity.StatusAssigned, env.assessments.stored(a.ID).Status)
}

func TestRescore_ScoreChangeReissuesCertificate(t *testing.T) {
	env := newTestEnv()
	env.seedLevels(skillPtr(entity.SkillReading), 2)
	a := assignMulti(t, env)
	reading, listening, writing, speaking := sectionIDs(a)
	ctx := context.Background()

	// Reading A2 на 100%, Writing ждёт оценки
	_, err := env.section.Start(ctx, student, reading, testNow)
	require.NoError(t, err)
	next, err := env.section.NextItem(ctx, student, reading, minutesLater(1))
	require.NoError(t, err)
	_, err = env.section.SubmitAnswer(ctx, student, reading, next.Question.ID, "ok", minutesLater(1))
	require.NoError(t, err)
	_, err = env.section.Complete(ctx, student, reading, minutesLater(2))
	require.NoError(t, err)
	startAndSkip(t, env, listening, minutesLater(3))
	_, err = env.section.Start(ctx, student, writing, minutesLater(4))
	require.NoError(t, err)
	_, err = env.section.Complete(ctx, student, writing, minutesLater(5))
	require.NoError(t, err)
	startAndSkip(t, env, speaking, minutesLater(6))
	require.Len(t, env.events.ofType(entity.EventCertificateRequest), 1)

	// Act: Writing оценена на A2, уровень тот же, процент 100 -> 50
	_, err = env.section.ApplyAIScore(ctx, scorer, writing, entity.ScoreBlob{Overall: 6, CEFRLevel: entity.LevelA2}, minutesLater(30))
	require.NoError(t, err)

	// Assert
	stored := env.assessments.stored(a.ID)
	assert.Equal(t, entity.LevelA2, *stored.CEFRLevel)
	assert.Equal(t, 50, *stored.Score)
	assert.Len(t, env.events.ofType(entity.EventCertificateRequest), 2, "Изменился балл - сертификат перевыпускается")
	assert.Len(t, env.events.ofType(entity.EventResultsReady), 2)
	assert.Len(t, env.events.ofType(entity.EventProfileLevelUpdate), 1, "Уровень не изменился - профиль не обновляется")
}

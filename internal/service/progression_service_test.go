package service

import (
	"testing"

	"academy_backend/internal/model"
	"academy_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func milestoneCodes(t *testing.T, env *testEnv, userID, courseID uint) map[model.MilestoneCode]bool {
	t.Helper()
	awards, err := env.milestoneRepo.ListByUserAndCourse(userID, courseID)
	require.NoError(t, err)
	out := make(map[model.MilestoneCode]bool, len(awards))
	for _, a := range awards {
		out[a.Code] = true
	}
	return out
}

func TestInitializeModuleProgress(t *testing.T) {
	env := newTestEnv(t)
	user := seedUser(t, env.db, "alice@example.com")
	course := seedCourse(t, env.db, 10000, 0, 60)
	m1 := seedModule(t, env.db, course, 1, false)
	m2 := seedModule(t, env.db, course, 2, false)
	m3 := seedModule(t, env.db, course, 3, false)
	bonus := seedModule(t, env.db, course, 4, true)

	require.NoError(t, env.progression.InitializeModuleProgress(env.db, user.ID, course.ID))

	expect := map[uint]model.ProgressStatus{
		m1.ID:    model.ProgressUnlocked,
		m2.ID:    model.ProgressLocked,
		m3.ID:    model.ProgressLocked,
		bonus.ID: model.ProgressUnlocked,
	}
	for modID, want := range expect {
		row, err := env.progressRepo.FindByUserAndModule(env.db, user.ID, modID)
		require.NoError(t, err)
		assert.Equal(t, want, row.Status, "module %d", modID)
	}

	// 重跑不覆盖已有进度
	require.NoError(t, env.progressRepo.UpdateStatus(env.db, mustProgress(t, env, user.ID, m1.ID).ID, model.ProgressCompleted))
	require.NoError(t, env.progression.InitializeModuleProgress(env.db, user.ID, course.ID))
	assert.Equal(t, model.ProgressCompleted, mustProgress(t, env, user.ID, m1.ID).Status)
}

func mustProgress(t *testing.T, env *testEnv, userID, moduleID uint) *model.ModuleProgress {
	t.Helper()
	row, err := env.progressRepo.FindByUserAndModule(env.db, userID, moduleID)
	require.NoError(t, err)
	return row
}

func TestSubmitQuizRejectsLockedModule(t *testing.T) {
	env := newTestEnv(t)
	user := seedUser(t, env.db, "alice@example.com")
	course := seedCourse(t, env.db, 10000, 0, 60)
	m1 := seedModule(t, env.db, course, 1, false)
	m2 := seedModule(t, env.db, course, 2, false)
	seedQuiz(t, env.db, m1, 1, nil)
	quiz2 := seedQuiz(t, env.db, m2, 1, nil)

	// 未报名（无进度行）同样按锁定处理
	_, err := env.progression.SubmitQuiz(user.ID, quiz2.ID, answersFor(t, env, quiz2.ID, 1))
	assert.ErrorIs(t, err, util.ErrModuleLocked)

	require.NoError(t, env.progression.InitializeModuleProgress(env.db, user.ID, course.ID))
	_, err = env.progression.SubmitQuiz(user.ID, quiz2.ID, answersFor(t, env, quiz2.ID, 1))
	assert.ErrorIs(t, err, util.ErrModuleLocked)
}

func TestSubmitQuizFailDoesNotAdvance(t *testing.T) {
	env := newTestEnv(t)
	user := seedUser(t, env.db, "alice@example.com")
	course := seedCourse(t, env.db, 10000, 0, 80)
	m1 := seedModule(t, env.db, course, 1, false)
	m2 := seedModule(t, env.db, course, 2, false)
	quiz := seedQuiz(t, env.db, m1, 5, nil)
	require.NoError(t, env.progression.InitializeModuleProgress(env.db, user.ID, course.ID))

	// 5 题对 3 → 60 分，及格线 80
	res, err := env.progression.SubmitQuiz(user.ID, quiz.ID, answersFor(t, env, quiz.ID, 3))
	require.NoError(t, err)
	assert.Equal(t, 60.0, res.Score)
	assert.False(t, res.Passed)
	assert.Equal(t, 1, res.AttemptNumber)
	assert.Equal(t, 3, res.Correct)

	assert.Equal(t, model.ProgressUnlocked, mustProgress(t, env, user.ID, m1.ID).Status)
	assert.Equal(t, model.ProgressLocked, mustProgress(t, env, user.ID, m2.ID).Status)

	// 失败的尝试也会留痕
	attempts, err := env.quizRepo.ListAttempts(user.ID, quiz.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.False(t, attempts[0].Passed)
}

func TestSubmitQuizPassAdvancesAndAwards(t *testing.T) {
	env := newTestEnv(t)
	user := seedUser(t, env.db, "alice@example.com")
	course := seedCourse(t, env.db, 10000, 0, 80)
	m1 := seedModule(t, env.db, course, 1, false)
	m2 := seedModule(t, env.db, course, 2, false)
	m3 := seedModule(t, env.db, course, 3, false)
	quiz1 := seedQuiz(t, env.db, m1, 5, nil)
	require.NoError(t, env.progression.InitializeModuleProgress(env.db, user.ID, course.ID))

	res, err := env.progression.SubmitQuiz(user.ID, quiz1.ID, answersFor(t, env, quiz1.ID, 5))
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.Score)
	assert.True(t, res.Passed)

	assert.Equal(t, model.ProgressCompleted, mustProgress(t, env, user.ID, m1.ID).Status)
	assert.Equal(t, model.ProgressUnlocked, mustProgress(t, env, user.ID, m2.ID).Status)
	assert.Equal(t, model.ProgressLocked, mustProgress(t, env, user.ID, m3.ID).Status)

	// 1/3 完成：FIRST_MODULE + [25,50) 档 + 首次测验通过
	codes := milestoneCodes(t, env, user.ID, course.ID)
	assert.True(t, codes[model.MilestoneFirstModule])
	assert.True(t, codes[model.MilestoneQuarter])
	assert.True(t, codes[model.MilestoneFirstQuizPass])
	assert.False(t, codes[model.MilestoneHalf])
}

func TestAttemptNumberingAndRepeatPass(t *testing.T) {
	env := newTestEnv(t)
	user := seedUser(t, env.db, "alice@example.com")
	course := seedCourse(t, env.db, 10000, 0, 80)
	m1 := seedModule(t, env.db, course, 1, false)
	quiz := seedQuiz(t, env.db, m1, 5, nil)
	require.NoError(t, env.progression.InitializeModuleProgress(env.db, user.ID, course.ID))

	for i, correct := range []int{2, 3} {
		res, err := env.progression.SubmitQuiz(user.ID, quiz.ID, answersFor(t, env, quiz.ID, correct))
		require.NoError(t, err)
		assert.False(t, res.Passed)
		assert.Equal(t, i+1, res.AttemptNumber)
	}

	res, err := env.progression.SubmitQuiz(user.ID, quiz.ID, answersFor(t, env, quiz.ID, 5))
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.Equal(t, 3, res.AttemptNumber)

	// 已完成的模块重复提交只记尝试，不再推进
	res, err = env.progression.SubmitQuiz(user.ID, quiz.ID, answersFor(t, env, quiz.ID, 5))
	require.NoError(t, err)
	assert.Equal(t, 4, res.AttemptNumber)
	assert.Equal(t, model.ProgressCompleted, mustProgress(t, env, user.ID, m1.ID).Status)
}

// 并发提交读到同一个已有次数时，唯一索引兜底，落库的编号不会重复
func TestAttemptNumberUniqueIndex(t *testing.T) {
	env := newTestEnv(t)
	user := seedUser(t, env.db, "alice@example.com")
	course := seedCourse(t, env.db, 10000, 0, 80)
	m1 := seedModule(t, env.db, course, 1, false)
	quiz := seedQuiz(t, env.db, m1, 2, nil)
	require.NoError(t, env.progression.InitializeModuleProgress(env.db, user.ID, course.ID))

	res, err := env.progression.SubmitQuiz(user.ID, quiz.ID, answersFor(t, env, quiz.ID, 0))
	require.NoError(t, err)
	require.Equal(t, 1, res.AttemptNumber)

	dup := &model.QuizAttempt{UserID: user.ID, QuizID: quiz.ID, AttemptNumber: 1, Score: 0}
	assert.ErrorIs(t, env.db.Create(dup).Error, gorm.ErrDuplicatedKey)

	// 常规提交在已有记录之后顺延编号
	res, err = env.progression.SubmitQuiz(user.ID, quiz.ID, answersFor(t, env, quiz.ID, 0))
	require.NoError(t, err)
	assert.Equal(t, 2, res.AttemptNumber)
}

func TestQuizLevelPassingScoreOverride(t *testing.T) {
	env := newTestEnv(t)
	user := seedUser(t, env.db, "alice@example.com")
	course := seedCourse(t, env.db, 10000, 0, 60)
	m1 := seedModule(t, env.db, course, 1, false)
	override := 90.0
	quiz := seedQuiz(t, env.db, m1, 5, &override)
	require.NoError(t, env.progression.InitializeModuleProgress(env.db, user.ID, course.ID))

	// 80 分过得了课程默认线，过不了测验覆盖线
	res, err := env.progression.SubmitQuiz(user.ID, quiz.ID, answersFor(t, env, quiz.ID, 4))
	require.NoError(t, err)
	assert.Equal(t, 80.0, res.Score)
	assert.Equal(t, 90.0, res.PassingScore)
	assert.False(t, res.Passed)
}

func TestBonusModuleOutsideRequiredSequence(t *testing.T) {
	env := newTestEnv(t)
	user := seedUser(t, env.db, "alice@example.com")
	course := seedCourse(t, env.db, 10000, 0, 60)
	m1 := seedModule(t, env.db, course, 1, false)
	bonus := seedModule(t, env.db, course, 2, true)
	m3 := seedModule(t, env.db, course, 3, false)
	seedQuiz(t, env.db, m1, 1, nil)
	bonusQuiz := seedQuiz(t, env.db, bonus, 1, nil)
	require.NoError(t, env.progression.InitializeModuleProgress(env.db, user.ID, course.ID))

	// 加分模块开局即解锁，通过后完成，但不解锁任何必修模块
	passQuiz(t, env, user.ID, bonusQuiz.ID)
	assert.Equal(t, model.ProgressCompleted, mustProgress(t, env, user.ID, bonus.ID).Status)
	assert.Equal(t, model.ProgressLocked, mustProgress(t, env, user.ID, m3.ID).Status)

	// 必修序列跳过加分模块：完成 m1 解锁 m3
	quiz1, err := env.quizRepo.FindByModuleID(m1.ID)
	require.NoError(t, err)
	passQuiz(t, env, user.ID, quiz1.ID)
	assert.Equal(t, model.ProgressUnlocked, mustProgress(t, env, user.ID, m3.ID).Status)

	// 里程碑只按必修模块计：1/2 完成 → HALF
	codes := milestoneCodes(t, env, user.ID, course.ID)
	assert.True(t, codes[model.MilestoneHalf])
	assert.False(t, codes[model.MilestoneComplete])
}

func TestFourModuleCourseCompletion(t *testing.T) {
	env := newTestEnv(t)
	user := seedUser(t, env.db, "alice@example.com")
	course := seedCourse(t, env.db, 10000, 0, 80)

	var quizzes []uint
	for i := 1; i <= 4; i++ {
		mod := seedModule(t, env.db, course, i, false)
		quiz := seedQuiz(t, env.db, mod, 5, nil)
		quizzes = append(quizzes, quiz.ID)
	}
	require.NoError(t, env.progression.InitializeModuleProgress(env.db, user.ID, course.ID))

	for _, quizID := range quizzes {
		passQuiz(t, env, user.ID, quizID)
	}

	codes := milestoneCodes(t, env, user.ID, course.ID)
	for _, want := range []model.MilestoneCode{
		model.MilestoneFirstModule,
		model.MilestoneFirstQuizPass,
		model.MilestoneQuarter,
		model.MilestoneHalf,
		model.MilestoneThreeQuarter,
		model.MilestoneComplete,
	} {
		assert.True(t, codes[want], "missing %s", want)
	}

	// 结业后有资格领证
	cert, err := env.certificate.Grant(user.ID, course.ID, false)
	require.NoError(t, err)
	assert.NotEmpty(t, cert.Code)
}

func TestGetCourseProgress(t *testing.T) {
	env := newTestEnv(t)
	user := seedUser(t, env.db, "alice@example.com")
	course := seedCourse(t, env.db, 10000, 0, 60)
	m1 := seedModule(t, env.db, course, 1, false)
	seedModule(t, env.db, course, 2, false)
	quiz := seedQuiz(t, env.db, m1, 1, nil)
	require.NoError(t, env.progression.InitializeModuleProgress(env.db, user.ID, course.ID))
	passQuiz(t, env, user.ID, quiz.ID)

	view, err := env.progression.GetCourseProgress(user.ID, course.ID)
	require.NoError(t, err)
	require.Len(t, view.Modules, 2)
	assert.Equal(t, model.ProgressCompleted, view.Modules[0].Status)
	assert.Equal(t, model.ProgressUnlocked, view.Modules[1].Status)
	assert.NotEmpty(t, view.Milestones)
}

func TestResetProgress(t *testing.T) {
	env := newTestEnv(t)
	user := seedUser(t, env.db, "alice@example.com")
	course := seedCourse(t, env.db, 10000, 0, 60)
	m1 := seedModule(t, env.db, course, 1, false)
	m2 := seedModule(t, env.db, course, 2, false)
	quiz1 := seedQuiz(t, env.db, m1, 1, nil)
	quiz2 := seedQuiz(t, env.db, m2, 1, nil)
	require.NoError(t, env.progression.InitializeModuleProgress(env.db, user.ID, course.ID))
	passQuiz(t, env, user.ID, quiz1.ID)
	passQuiz(t, env, user.ID, quiz2.ID)

	_, err := env.certificate.Grant(user.ID, course.ID, false)
	require.NoError(t, err)

	require.NoError(t, env.progression.ResetProgress(user.ID, course.ID))

	attempts, err := env.quizRepo.ListAttempts(user.ID, quiz1.ID)
	require.NoError(t, err)
	assert.Empty(t, attempts)

	codes := milestoneCodes(t, env, user.ID, course.ID)
	assert.Empty(t, codes)

	_, err = env.certificateRepo.FindByUserAndCourse(user.ID, course.ID)
	assert.Error(t, err)

	// 进度回到初始解锁状态
	assert.Equal(t, model.ProgressUnlocked, mustProgress(t, env, user.ID, m1.ID).Status)
	assert.Equal(t, model.ProgressLocked, mustProgress(t, env, user.ID, m2.ID).Status)
}

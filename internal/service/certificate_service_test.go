package service

import (
	"strings"
	"testing"

	"academy_backend/internal/model"
	"academy_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrantRequiresEligibility(t *testing.T) {
	env := newTestEnv(t)
	user := seedUser(t, env.db, "alice@example.com")
	course := seedCourse(t, env.db, 10000, 0, 60)
	m1 := seedModule(t, env.db, course, 1, false)
	m2 := seedModule(t, env.db, course, 2, false)
	quiz1 := seedQuiz(t, env.db, m1, 1, nil)
	seedQuiz(t, env.db, m2, 1, nil)
	require.NoError(t, env.progression.InitializeModuleProgress(env.db, user.ID, course.ID))

	// 一个模块都没完成
	_, err := env.certificate.Grant(user.ID, course.ID, false)
	assert.ErrorIs(t, err, util.ErrNotEligible)

	// 完成一半仍不够
	passQuiz(t, env, user.ID, quiz1.ID)
	_, err = env.certificate.Grant(user.ID, course.ID, false)
	assert.ErrorIs(t, err, util.ErrNotEligible)
}

func TestGrantIssuesOncePerStudentCourse(t *testing.T) {
	env := newTestEnv(t)
	user := seedUser(t, env.db, "alice@example.com")
	course := seedCourse(t, env.db, 10000, 0, 60)
	m1 := seedModule(t, env.db, course, 1, false)
	quiz := seedQuiz(t, env.db, m1, 1, nil)
	require.NoError(t, env.progression.InitializeModuleProgress(env.db, user.ID, course.ID))
	passQuiz(t, env, user.ID, quiz.ID)

	first, err := env.certificate.Grant(user.ID, course.ID, false)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first.Code, "CERT-"))
	assert.Len(t, first.Code, len("CERT-")+10)
	assert.False(t, first.Overridden)

	// 重复领取返回同一张
	second, err := env.certificate.Grant(user.ID, course.ID, false)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Code, second.Code)

	var count int64
	require.NoError(t, env.db.Model(&model.Certificate{}).
		Where("user_id = ? AND course_id = ?", user.ID, course.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestGrantOverrideSkipsEligibility(t *testing.T) {
	env := newTestEnv(t)
	user := seedUser(t, env.db, "alice@example.com")
	course := seedCourse(t, env.db, 10000, 0, 60)
	m1 := seedModule(t, env.db, course, 1, false)
	seedQuiz(t, env.db, m1, 1, nil)
	require.NoError(t, env.progression.InitializeModuleProgress(env.db, user.ID, course.ID))

	cert, err := env.certificate.Grant(user.ID, course.ID, true)
	require.NoError(t, err)
	assert.True(t, cert.Overridden)

	// 补发后自助路径拿到的是同一张
	same, err := env.certificate.Grant(user.ID, course.ID, false)
	require.NoError(t, err)
	assert.Equal(t, cert.ID, same.ID)
}

func TestEligibilitySkipsModulesWithoutQuiz(t *testing.T) {
	env := newTestEnv(t)
	user := seedUser(t, env.db, "alice@example.com")
	course := seedCourse(t, env.db, 10000, 0, 60)
	m1 := seedModule(t, env.db, course, 1, false)
	m2 := seedModule(t, env.db, course, 2, false)
	quiz := seedQuiz(t, env.db, m1, 1, nil)
	require.NoError(t, env.progression.InitializeModuleProgress(env.db, user.ID, course.ID))
	passQuiz(t, env, user.ID, quiz.ID)

	// 无测验模块在别处完成（内容学完即标记），资格校验不对它设测验门槛
	row := mustProgress(t, env, user.ID, m2.ID)
	require.NoError(t, env.progressRepo.UpdateStatus(env.db, row.ID, model.ProgressCompleted))

	cert, err := env.certificate.Grant(user.ID, course.ID, false)
	require.NoError(t, err)
	assert.NotEmpty(t, cert.Code)
}

func TestGrantUnknownCourse(t *testing.T) {
	env := newTestEnv(t)
	user := seedUser(t, env.db, "alice@example.com")

	_, err := env.certificate.Grant(user.ID, 9999, false)
	assert.ErrorIs(t, err, util.ErrCourseNotFound)
}

func TestCertificateLookupByCode(t *testing.T) {
	env := newTestEnv(t)
	user := seedUser(t, env.db, "alice@example.com")
	course := seedCourse(t, env.db, 10000, 0, 60)
	seedModule(t, env.db, course, 1, false)
	require.NoError(t, env.progression.InitializeModuleProgress(env.db, user.ID, course.ID))

	cert, err := env.certificate.Grant(user.ID, course.ID, true)
	require.NoError(t, err)

	found, err := env.certificate.FindByCode(cert.Code)
	require.NoError(t, err)
	assert.Equal(t, cert.ID, found.ID)

	_, err = env.certificate.FindByCode("CERT-NOPE")
	assert.Error(t, err)
}

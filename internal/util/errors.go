package util

import "errors"

var (
	ErrUserNotFound     = errors.New("用户不存在")
	ErrEmailRegistered  = errors.New("该邮箱已被注册")
	ErrPermissionDenied = errors.New("permission denied")

	ErrCourseNotFound   = errors.New("course not found")
	ErrQuizNotFound     = errors.New("quiz not found")
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrNotEnrolled      = errors.New("not enrolled in this course")
	ErrAlreadyEnrolled  = errors.New("course already purchased")
	ErrCheckoutNotPaid  = errors.New("checkout session is not paid yet")
	ErrModuleLocked     = errors.New("module is locked")
	ErrNotEligible      = errors.New("certificate requirements not met")
	ErrInvalidSignature = errors.New("webhook signature verification failed")
	// 不算真正的错误：入账时发现订单已入账，调用方按成功处理
	ErrAlreadySettled = errors.New("payment already settled")
)

package services

import "errors"

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrOpinionNotFound   = errors.New("opinion not found")
	ErrCandidateNotFound = errors.New("candidate not found")
	ErrUnknownTopic      = errors.New("unknown topic")
	ErrAnswerExists      = errors.New("opinion already answered")
	ErrRateLimited       = errors.New("too many answers, slow down")
	ErrQuizComplete      = errors.New("no questions left")
)

package ik

import "errors"

var (
	ErrNoEffector        = errors.New("chain has no effector")
	ErrNoJoints          = errors.New("chain has no joints")
	ErrTooManyJoints     = errors.New("chain has more than three joints")
	ErrInvalidIterations = errors.New("chain iterations must be at least one")
	ErrInvalidLimits     = errors.New("joint rotation min exceeds max")
	ErrNoRoot            = errors.New("chain has no root pose")
)

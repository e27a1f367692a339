package uow

import "errors"

// Ошибки реестра фабрик. Регистрация происходит на старте процесса, поэтому
// в рантайме их появление означает ошибку конфигурации.
var (
	ErrRepositoryNotRegistered     = errors.New("[uow] repository not registered")
	ErrRepositoryAlreadyRegistered = errors.New("[uow] repository already registered")
	ErrInvalidRepositoryType       = errors.New("[uow] invalid repository type")
)

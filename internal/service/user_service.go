package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vidmarket/coinledger/internal/domain"
	"github.com/vidmarket/coinledger/internal/repository/repoargs"
	"github.com/vidmarket/coinledger/internal/service/tokens"
	"github.com/vidmarket/coinledger/pkg/uow"
)

const JWTTokenExpire = 24 * time.Hour

type UserService struct {
	uow            uow.UOW
	accountRepo    AccountRepository
	hasher         PasswordHasher
	jwtTokenSecret []byte
}

func NewUserService(u uow.UOW, hasher PasswordHasher, jwtTokenSecret []byte) (*UserService, error) {
	accountRepo, accountRepoErr := uow.GetRepositoryAs[AccountRepository](
		u, uow.RepositoryName(repoargs.AccountRepoName))
	if accountRepoErr != nil {
		return nil, accountRepoErr
	}
	return &UserService{
		uow:            u,
		accountRepo:    accountRepo,
		hasher:         hasher,
		jwtTokenSecret: jwtTokenSecret,
	}, nil
}

type RegisterAccountArgs struct {
	Email    string
	Password string
	Role     domain.Role
}

// Register создает счет и генерирует jwt токен. Возвращает созданный счет, токен
// и ошибку. Дубль email вернет domain.ErrDuplicateKey.
func (s *UserService) Register(ctx context.Context, args RegisterAccountArgs) (*domain.Account, string, error) {
	password, hashErr := s.hasher.HashPassword(args.Password)
	if hashErr != nil {
		return nil, "", fmt.Errorf("registering account: %s", hashErr.Error())
	}

	role := args.Role
	if role == "" {
		role = domain.RoleClient
	}

	account, createErr := s.accountRepo.Create(ctx, repoargs.CreateAccount{
		Email:    args.Email,
		Password: password,
		Role:     role,
	})
	if createErr != nil {
		return nil, "", fmt.Errorf("registering account: %w", createErr)
	}

	token, tokenErr := tokens.GenerateUserJWT(account.ID, string(account.Role), JWTTokenExpire, s.jwtTokenSecret)
	if tokenErr != nil {
		return nil, "", fmt.Errorf("registering account: %w", tokenErr)
	}
	return account, token, nil
}

type LoginAccountArgs struct {
	Email    string
	Password string
}

// Login аутентифицирует по паре email/пароль. При несовпадении пароля возвращает
// domain.ErrPasswordMissMatch, при отсутствии счета - domain.ErrRecordNotFound.
func (s *UserService) Login(ctx context.Context, args LoginAccountArgs) (*domain.Account, string, error) {
	account, findErr := s.accountRepo.FindByEmail(ctx, args.Email)
	if findErr != nil {
		return nil, "", fmt.Errorf("logging in: %w", findErr)
	}

	if !s.hasher.ComparePassword(args.Password, account.Password) {
		return nil, "", domain.ErrPasswordMissMatch
	}

	token, tokenErr := tokens.GenerateUserJWT(account.ID, string(account.Role), JWTTokenExpire, s.jwtTokenSecret)
	if tokenErr != nil {
		return nil, "", fmt.Errorf("logging in: %w", tokenErr)
	}
	return account, token, nil
}

// EnsureAdmin создает админский счет, если его еще нет. Вызывается на старте процесса.
func (s *UserService) EnsureAdmin(ctx context.Context, email, password string) (*domain.Account, error) {
	existing, findErr := s.accountRepo.FindByEmail(ctx, email)
	if findErr == nil {
		return existing, nil
	}
	if !errors.Is(findErr, domain.ErrRecordNotFound) {
		return nil, fmt.Errorf("ensuring admin account: %w", findErr)
	}

	account, _, registerErr := s.Register(ctx, RegisterAccountArgs{
		Email:    email,
		Password: password,
		Role:     domain.RoleAdmin,
	})
	if registerErr != nil {
		// гонка двух инстансов на старте: счет уже создан соседом.
		if errors.Is(registerErr, domain.ErrDuplicateKey) {
			return s.accountRepo.FindByEmail(ctx, email) //nolint:wrapcheck
		}
		return nil, registerErr
	}
	return account, nil
}

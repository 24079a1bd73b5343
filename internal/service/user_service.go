package service

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"shop-assist-go/internal/model"
	"shop-assist-go/internal/repository"
	"shop-assist-go/pkg/hash"
	"shop-assist-go/pkg/log"
	"shop-assist-go/pkg/token"
)

// UserService 接口定义了所有与用户相关的业务操作。
type UserService interface {
	Register(name, email, password string) (*model.User, error)
	Login(ctx context.Context, email, password string) (accessToken, refreshToken, role string, err error)
	Logout(ctx context.Context, userID uint) error
	GetByID(ctx context.Context, userID uint) (*model.User, error)
	ListUsers(page, pageSize int) ([]model.User, int64, error)
	RefreshToken(refreshTokenString string) (newAccessToken, newRefreshToken string, err error)
}

// userService 是 UserService 接口的实现。
type userService struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	contextRepo repository.ContextRepository
	chatLogRepo repository.ChatLogRepository
	jwtManager  *token.JWTManager
}

// NewUserService 创建一个新的 UserService 实例。
func NewUserService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	contextRepo repository.ContextRepository,
	chatLogRepo repository.ChatLogRepository,
	jwtManager *token.JWTManager,
) UserService {
	return &userService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		contextRepo: contextRepo,
		chatLogRepo: chatLogRepo,
		jwtManager:  jwtManager,
	}
}

// Register 处理用户注册的业务逻辑。
func (s *userService) Register(name, email, password string) (*model.User, error) {
	// 1. 检查邮箱是否已被注册
	_, err := s.userRepo.FindByEmail(email)
	if err == nil {
		return nil, errors.New("该邮箱已被注册")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// 2. 对密码进行哈希处理
	hashedPassword, err := hash.HashPassword(password)
	if err != nil {
		return nil, err
	}

	// 3. 创建新用户，默认普通用户角色
	newUser := &model.User{
		Name:     name,
		Email:    email,
		Password: hashedPassword,
		Role:     model.RoleUser,
	}
	if err := s.userRepo.Create(newUser); err != nil {
		return nil, err
	}
	return newUser, nil
}

// Login 处理用户登录的业务逻辑。
// 登录成功后缓存脱敏用户信息，并清除上一个会话遗留的聊天记录和
// 商品上下文——旧上下文绝不能泄漏进新会话。
func (s *userService) Login(ctx context.Context, email, password string) (string, string, string, error) {
	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", "", "", errors.New("invalid credentials")
		}
		return "", "", "", err
	}

	if !hash.CheckPasswordHash(password, user.Password) {
		return "", "", "", errors.New("invalid credentials")
	}

	accessToken, err := s.jwtManager.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		return "", "", "", err
	}
	refreshToken, err := s.jwtManager.GenerateRefreshToken(user.ID, user.Email, user.Role)
	if err != nil {
		return "", "", "", err
	}

	if err := s.sessionRepo.Set(ctx, *user); err != nil {
		log.Warnf("[UserService] 缓存用户会话失败, userId=%d: %v", user.ID, err)
	}
	if err := s.chatLogRepo.Clear(ctx, user.ID); err != nil {
		log.Warnf("[UserService] 清除历史聊天记录失败, userId=%d: %v", user.ID, err)
	}
	if err := s.contextRepo.Clear(ctx, user.ID); err != nil {
		log.Warnf("[UserService] 清除商品上下文失败, userId=%d: %v", user.ID, err)
	}

	return accessToken, refreshToken, user.Role, nil
}

// Logout 清除该用户自己的缓存数据（会话、上下文、聊天记录）。
// 只清除当前用户的 key，不影响其他在线用户。
func (s *userService) Logout(ctx context.Context, userID uint) error {
	if err := s.sessionRepo.Delete(ctx, userID); err != nil {
		return err
	}
	if err := s.contextRepo.Clear(ctx, userID); err != nil {
		return err
	}
	return s.chatLogRepo.Clear(ctx, userID)
}

// GetByID 返回用户信息，优先读会话缓存。
func (s *userService) GetByID(ctx context.Context, userID uint) (*model.User, error) {
	if cached, err := s.sessionRepo.Get(ctx, userID); err == nil && cached != nil {
		return cached, nil
	}
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	if err := s.sessionRepo.Set(ctx, *user); err != nil {
		log.Warnf("[UserService] 回填用户缓存失败, userId=%d: %v", userID, err)
	}
	return user, nil
}

// ListUsers 分页返回用户列表，密码字段已脱敏。
func (s *userService) ListUsers(page, pageSize int) ([]model.User, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	users, total, err := s.userRepo.FindWithPagination((page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, err
	}
	for i := range users {
		users[i] = users[i].Sanitized()
	}
	return users, total, nil
}

// RefreshToken 校验 refresh token 并签发新的一对 token。
func (s *userService) RefreshToken(refreshTokenString string) (string, string, error) {
	claims, err := s.jwtManager.VerifyToken(refreshTokenString)
	if err != nil {
		return "", "", errors.New("无效或已过期的 refresh token")
	}

	// 确认用户仍然存在
	user, err := s.userRepo.FindByID(claims.UserID)
	if err != nil {
		return "", "", errors.New("用户不存在")
	}

	newAccessToken, err := s.jwtManager.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		return "", "", err
	}
	newRefreshToken, err := s.jwtManager.GenerateRefreshToken(user.ID, user.Email, user.Role)
	if err != nil {
		return "", "", err
	}
	return newAccessToken, newRefreshToken, nil
}

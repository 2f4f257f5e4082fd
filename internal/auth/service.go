package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const sessionTTL = 24 * time.Hour

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrMissingProject = errors.New("project id is required")
	ErrAccessDenied   = errors.New("access key rejected")
)

// Session identifies one editor of one project.
type Session struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	ProjectID   string `json:"projectId"`
}

type claims struct {
	Name    string `json:"name"`
	Project string `json:"prj"`
	jwt.RegisteredClaims
}

type Service struct {
	jwtSecret []byte
	accessKey []byte
	now       func() time.Time
}

func NewService(jwtSecret string) *Service {
	return &Service{
		jwtSecret: []byte(jwtSecret),
		now:       time.Now,
	}
}

// WithAccessKey makes session creation require key. An empty key leaves
// sessions open to anyone who can reach the server.
func (s *Service) WithAccessKey(key string) *Service {
	s.accessKey = []byte(key)
	return s
}

// CheckAccessKey reports ErrAccessDenied when an access key is configured and
// key does not match it.
func (s *Service) CheckAccessKey(key string) error {
	if len(s.accessKey) == 0 {
		return nil
	}
	if subtle.ConstantTimeCompare(s.accessKey, []byte(key)) != 1 {
		return ErrAccessDenied
	}
	return nil
}

type SessionResult struct {
	Token   string  `json:"token"`
	Session Session `json:"session"`
}

// Issue starts a session on a project. A blank display name becomes
// "Anonymous".
func (s *Service) Issue(projectID, displayName string) (*SessionResult, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, ErrMissingProject
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = "Anonymous"
	}

	sess := Session{
		UserID:      "user-" + uuid.NewString()[:8],
		DisplayName: displayName,
		ProjectID:   projectID,
	}
	token, err := s.issueToken(sess)
	if err != nil {
		return nil, err
	}
	return &SessionResult{Token: token, Session: sess}, nil
}

func (s *Service) ValidateToken(tokenString string) (Session, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return Session{}, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid || c.Subject == "" || c.Project == "" {
		return Session{}, ErrInvalidToken
	}
	return Session{UserID: c.Subject, DisplayName: c.Name, ProjectID: c.Project}, nil
}

func (s *Service) issueToken(sess Session) (string, error) {
	now := s.now()
	c := claims{
		Name:    sess.DisplayName,
		Project: sess.ProjectID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sess.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

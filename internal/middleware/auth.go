// Package middleware содержит HTTP middleware для сервиса бронирования отеля.
package middleware

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mmeshcher/hotelier-system/internal/model"
)

type contextKey string

const principalKey contextKey = "principal"

const tokenTTL = 24 * time.Hour

// writeCode отправляет ошибку в том же конверте, что и обработчики API.
func writeCode(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   code,
		"message": message,
	})
}

// AuthMiddleware выполняет выпуск и проверку JWT-токенов доступа.
type AuthMiddleware struct {
	secretKey []byte
}

// NewAuthMiddleware создаёт новый экземпляр AuthMiddleware с указанным секретным ключом.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}

	return &AuthMiddleware{
		secretKey: key,
	}
}

// IssueToken выпускает подписанный HS256 токен с идентификатором пользователя
// и ролью в claims.
func (a *AuthMiddleware) IssueToken(userID int64, role model.Role) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":  strconv.FormatInt(userID, 10),
		"role": string(role),
		"exp":  now.Add(tokenTTL).Unix(),
		"iat":  now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secretKey)
}

// Middleware проверяет Bearer-токен и добавляет аутентифицированного субъекта
// в контекст запроса.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			writeCode(w, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}

		principal, ok := a.parseToken(strings.TrimPrefix(auth, "Bearer "))
		if !ok {
			writeCode(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), principalKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole возвращает middleware, пропускающее только запросы субъектов с
// одной из перечисленных ролей. Используется после Middleware.
func RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := GetPrincipalFromContext(r.Context())
			if !ok {
				writeCode(w, http.StatusUnauthorized, "unauthorized", "authentication required")
				return
			}

			for _, role := range roles {
				if principal.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			writeCode(w, http.StatusForbidden, "forbidden", "insufficient role")
		})
	}
}

func (a *AuthMiddleware) parseToken(raw string) (model.Principal, bool) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secretKey, nil
	})
	if err != nil || !token.Valid {
		return model.Principal{}, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return model.Principal{}, false
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return model.Principal{}, false
	}
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return model.Principal{}, false
	}

	role, ok := claims["role"].(string)
	if !ok {
		return model.Principal{}, false
	}

	return model.Principal{UserID: userID, Role: model.Role(role)}, true
}

// GetPrincipalFromContext извлекает аутентифицированного субъекта из контекста запроса.
func GetPrincipalFromContext(ctx context.Context) (model.Principal, bool) {
	principal, ok := ctx.Value(principalKey).(model.Principal)
	return principal, ok
}

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mcronin4/scrappers-cup/pkg/logger"
)

const (
	actorHeader    = "X-Actor"
	anonymousActor = "anonymous"
	maxActorLength = 128
)

type actorKey struct{}

// ActorFrom returns the actor attached to ctx by the auth middleware.
func ActorFrom(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok {
		return actor
	}
	return anonymousActor
}

// WithActor attaches actor to ctx.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

type authenticator struct {
	secret []byte
	logger logger.Logger
}

func newAuthenticator(secret []byte, l logger.Logger) *authenticator {
	return &authenticator{secret: secret, logger: l}
}

// middleware resolves the request actor. With a secret configured it demands
// a valid bearer token; otherwise it trusts the X-Actor header.
func (a *authenticator) middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := a.actor(r)
		if err != nil {
			a.logger.Debug(r.Context(), "request unauthorized",
				logger.String("path", r.URL.Path),
				logger.Error(err),
			)
			writeError(w, http.StatusUnauthorized, "unauthorized", err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	}
}

func (a *authenticator) actor(r *http.Request) (string, error) {
	if len(a.secret) == 0 {
		actor := strings.TrimSpace(r.Header.Get(actorHeader))
		if actor == "" {
			return anonymousActor, nil
		}
		if len(actor) > maxActorLength {
			actor = actor[:maxActorLength]
		}
		return actor, nil
	}

	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return "", NewKind("auth", ErrUnauthorized)
	}
	subject, err := a.verify(strings.TrimSpace(raw))
	if err != nil {
		return "", WrapKind("auth", ErrUnauthorized, err)
	}
	return subject, nil
}

// verify validates an HS256 token and returns its subject.
func (a *authenticator) verify(raw string) (string, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	subject, err := token.Claims.GetSubject()
	if err != nil {
		return "", fmt.Errorf("read subject: %w", err)
	}
	if subject == "" {
		return "", errors.New("token has no subject")
	}
	return subject, nil
}

// Package main печатает JWT администратора для HTTP API бота.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/magabrotheeeer/subscription-bot/internal/config"
	"github.com/magabrotheeeer/subscription-bot/internal/lib/jwt"
	"github.com/magabrotheeeer/subscription-bot/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	maker := jwt.NewJWTMaker(cfg.JWT.JWTSecretKey, cfg.JWT.TokenTTL)
	token, err := maker.GenerateToken(cfg.AdminID, jwt.RoleAdmin)
	if err != nil {
		logger.Error("failed to generate token", sl.Err(err))
		os.Exit(1)
	}
	logger.Info("admin token issued", slog.String("admin_id", cfg.AdminID), slog.Duration("ttl", cfg.JWT.TokenTTL))
	fmt.Println(token)
}

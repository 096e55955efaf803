package db

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"wageadvance/internal/domain/auth"
	"wageadvance/internal/platform/config"
)

type seedBank struct {
	Code string
	Name string
}

var defaultBanks = []seedBank{
	{Code: "0102", Name: "Banco de Venezuela"},
	{Code: "0104", Name: "Venezolano de Credito"},
	{Code: "0105", Name: "Mercantil"},
	{Code: "0108", Name: "Provincial"},
	{Code: "0114", Name: "Bancaribe"},
	{Code: "0134", Name: "Banesco"},
	{Code: "0151", Name: "BFC Banco Fondo Comun"},
	{Code: "0163", Name: "Banco del Tesoro"},
	{Code: "0172", Name: "Bancamiga"},
	{Code: "0191", Name: "Banco Nacional de Credito"},
}

func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if err := ensureBanks(ctx, pool); err != nil {
		return err
	}
	return ensureOperator(ctx, pool, cfg.SeedOperatorEmail, cfg.SeedOperatorPassword)
}

func ensureBanks(ctx context.Context, pool *pgxpool.Pool) error {
	for _, bank := range defaultBanks {
		if _, err := pool.Exec(ctx, "INSERT INTO banks (code, name) VALUES ($1, $2) ON CONFLICT (code) DO NOTHING", bank.Code, bank.Name); err != nil {
			return err
		}
	}
	return nil
}

func ensureOperator(ctx context.Context, pool *pgxpool.Pool, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || strings.TrimSpace(password) == "" {
		return nil
	}

	var id string
	err := pool.QueryRow(ctx, "SELECT id FROM users WHERE email = $1", email).Scan(&id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = pool.Exec(ctx, "INSERT INTO users (email, password_hash, role) VALUES ($1, $2, $3)", email, hash, auth.RoleOperator)
	return err
}

package oauth

import (
	"context"
	"fmt"

	"github.com/geogismaps/geoadapter/pkg/tenant"
	"github.com/geogismaps/geoadapter/pkg/vault"
)

// Refresher обновляет протухший access-токен арендатора: расшифровывает
// refresh-токен, обменивает его и сохраняет новую пару обратно в
// зашифрованном виде
type Refresher struct {
	client *Client
	store  tenant.Store
	vault  *vault.Vault
}

// NewRefresher создает Refresher
func NewRefresher(client *Client, store tenant.Store, v *vault.Vault) *Refresher {
	return &Refresher{client: client, store: store, vault: v}
}

// RefreshTenant обновляет access-токен Sheets-арендатора и возвращает
// новый токен в открытом виде для немедленного использования
func (r *Refresher) RefreshTenant(ctx context.Context, tenantID string) (string, error) {
	cfg, err := r.store.GetSheetsConfig(ctx, tenantID)
	if err != nil {
		return "", fmt.Errorf("failed to load sheets config: %w", err)
	}
	if cfg.RefreshTokenEnc == "" {
		return "", fmt.Errorf("tenant %s has no refresh token", tenantID)
	}

	refreshToken, err := r.vault.Decrypt(cfg.RefreshTokenEnc)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt refresh token: %w", err)
	}

	tok, err := r.client.Refresh(ctx, refreshToken)
	if err != nil {
		return "", err
	}

	accessEnc, err := r.vault.Encrypt(tok.AccessToken)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt access token: %w", err)
	}
	// Google не ротирует refresh-токен; прежний остается действующим
	refreshEnc := cfg.RefreshTokenEnc
	if tok.RefreshToken != "" {
		refreshEnc, err = r.vault.Encrypt(tok.RefreshToken)
		if err != nil {
			return "", fmt.Errorf("failed to encrypt refresh token: %w", err)
		}
	}

	if err := r.store.SaveSheetsTokens(ctx, tenantID, accessEnc, refreshEnc); err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// StoreExchangedToken шифрует и сохраняет пару токенов после обмена кода
func (r *Refresher) StoreExchangedToken(ctx context.Context, tenantID string, tok *Token) error {
	accessEnc, err := r.vault.Encrypt(tok.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}
	refreshEnc, err := r.vault.Encrypt(tok.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt refresh token: %w", err)
	}
	return r.store.SaveSheetsTokens(ctx, tenantID, accessEnc, refreshEnc)
}

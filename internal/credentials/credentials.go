// Package credentials resolve o par email/senha usado pelo cliente de chat.
//
// As variáveis sem índice (OPENAI_EMAIL, OPENAI_PASSWORD) têm prioridade. Quando
// estão ausentes, o índice é derivado do hostname (último segmento separado por
// "-") e as variáveis OPENAI_EMAIL_<idx> / OPENAI_PASSWORD_<idx> são usadas.
package credentials

import (
	"os"
	"strings"
)

const (
	EmailKey    = "OPENAI_EMAIL"
	PasswordKey = "OPENAI_PASSWORD"
)

// LookupFunc tem a mesma assinatura de os.LookupEnv
type LookupFunc func(key string) (string, bool)

// Credentials é o par usado para construir o cliente
type Credentials struct {
	Email    string
	Password string
}

// Index retorna o último segmento do hostname separado por "-"
func Index(hostname string) string {
	parts := strings.Split(hostname, "-")
	return parts[len(parts)-1]
}

// IndexedKey retorna o nome da variável indexada para o hostname, ex: OPENAI_EMAIL_3
func IndexedKey(key, hostname string) string {
	return key + "_" + Index(hostname)
}

// Resolve escolhe as credenciais a partir do ambiente e do hostname.
// Não valida presença: campos ausentes ficam vazios.
func Resolve(lookup LookupFunc, hostname string) Credentials {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return Credentials{
		Email:    resolveKey(lookup, EmailKey, hostname),
		Password: resolveKey(lookup, PasswordKey, hostname),
	}
}

// Lookup resolve uma única chave com o mesmo fallback indexado
func Lookup(lookup LookupFunc, key, hostname string) (string, bool) {
	if v, ok := lookup(key); ok && v != "" {
		return v, true
	}
	if v, ok := lookup(IndexedKey(key, hostname)); ok && v != "" {
		return v, true
	}
	return "", false
}

func resolveKey(lookup LookupFunc, key, hostname string) string {
	v, _ := Lookup(lookup, key, hostname)
	return v
}

// Masked retorna o email com a parte local mascarada, para logs
func (c Credentials) Masked() string {
	at := strings.Index(c.Email, "@")
	if at <= 1 {
		if c.Email == "" {
			return ""
		}
		return "***"
	}
	return c.Email[:1] + "***" + c.Email[at:]
}

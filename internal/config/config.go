// Package config monta a configuração do relay uma única vez, no startup.
//
// A ordem de precedência é: flags explícitas, variáveis de ambiente do processo,
// arquivo .env, valores padrão. O manifesto (.env.example) lista as chaves
// obrigatórias e é validado depois que o arquivo .env é lido.
package config

import (
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/vitormoschetta/chatrelay/internal/credentials"
)

const (
	BackendUpstream = "upstream"
	BackendGemini   = "gemini"

	DefaultPort        = 3000
	DefaultGeminiModel = "gemini-2.5-flash"
)

// Config contém tudo que o processo precisa, resolvido e validado
type Config struct {
	Port       int
	Hostname   string
	EnvFile    string
	EnvExample string
	LogLevel   string

	Backend         string
	UpstreamURL     string
	UpstreamTimeout time.Duration
	Debug           bool
	Minimize        bool

	GoogleAPIKey string
	GeminiModel  string
	MCPEndpoint  string
	MCPToken     string

	Credentials credentials.Credentials
}

// Default retorna a configuração padrão, antes de flags e ambiente
func Default() *Config {
	return &Config{
		Port:        DefaultPort,
		EnvFile:     ".env",
		EnvExample:  ".env.example",
		LogLevel:    "info",
		Backend:     BackendUpstream,
		Minimize:    true,
		GeminiModel: DefaultGeminiModel,
	}
}

// ChangedFunc informa se uma flag foi passada explicitamente
type ChangedFunc func(flag string) bool

// envBinding liga uma variável de ambiente a um campo que também pode vir de flag
type envBinding struct {
	key   string
	flag  string
	apply func(c *Config, v string) error
}

var envBindings = []envBinding{
	{"CHATRELAY_BACKEND", "backend", func(c *Config, v string) error { c.Backend = v; return nil }},
	{"CHATRELAY_UPSTREAM_URL", "upstream-url", func(c *Config, v string) error { c.UpstreamURL = v; return nil }},
	{"CHATRELAY_UPSTREAM_TIMEOUT", "upstream-timeout", func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrap(err, "CHATRELAY_UPSTREAM_TIMEOUT")
		}
		c.UpstreamTimeout = d
		return nil
	}},
	{"CHATRELAY_PORT", "port", func(c *Config, v string) error {
		p, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, "CHATRELAY_PORT")
		}
		c.Port = p
		return nil
	}},
	{"CHATRELAY_DEBUG", "debug", func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(err, "CHATRELAY_DEBUG")
		}
		c.Debug = b
		return nil
	}},
	{"CHATRELAY_MINIMIZE", "minimize", func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(err, "CHATRELAY_MINIMIZE")
		}
		c.Minimize = b
		return nil
	}},
	{"CHATRELAY_LOG_LEVEL", "log-level", func(c *Config, v string) error { c.LogLevel = v; return nil }},
	{"GOOGLE_API_KEY", "", func(c *Config, v string) error { c.GoogleAPIKey = v; return nil }},
	{"GEMINI_MODEL", "gemini-model", func(c *Config, v string) error { c.GeminiModel = v; return nil }},
	{"MCP_ENDPOINT", "mcp-endpoint", func(c *Config, v string) error { c.MCPEndpoint = v; return nil }},
	{"X_MCP_TOKEN", "", func(c *Config, v string) error { c.MCPToken = v; return nil }},
}

// Load lê o arquivo .env, valida o manifesto, aplica o ambiente, resolve as
// credenciais e valida o resultado. lookup normalmente é os.LookupEnv.
func Load(c *Config, lookup credentials.LookupFunc, changed ChangedFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if changed == nil {
		changed = func(string) bool { return false }
	}

	if c.Hostname == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return errors.Wrap(err, "failed to resolve hostname")
		}
		c.Hostname = hostname
	}

	fileEnv, err := ReadEnvFile(c.EnvFile)
	if err != nil {
		return err
	}
	env := Layered(lookup, fileEnv)

	for _, b := range envBindings {
		if b.flag != "" && changed(b.flag) {
			continue
		}
		if v, ok := env(b.key); ok && v != "" {
			if err := b.apply(c, v); err != nil {
				return errors.Wrap(err, "invalid environment value")
			}
		}
	}

	if err := CheckManifest(c.EnvExample, env, c.Hostname, c.Backend); err != nil {
		return err
	}

	c.Credentials = credentials.Resolve(env, c.Hostname)

	return c.Validate()
}

// ReadEnvFile lê o arquivo .env sem alterar o ambiente do processo.
// Um arquivo ausente gera apenas um aviso.
func ReadEnvFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Warn().Str("path", path).Msg(".env file not found or could not be loaded")
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to parse env file %s", path)
	}
	return values, nil
}

// Layered dá prioridade ao ambiente do processo sobre os valores do arquivo,
// como faz godotenv.Load
func Layered(lookup credentials.LookupFunc, file map[string]string) credentials.LookupFunc {
	return func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := file[key]
		return v, ok
	}
}

// backendKeys são chaves que só um backend usa. No manifesto elas só são
// exigidas quando esse backend está selecionado.
var backendKeys = map[string]string{
	credentials.EmailKey:     BackendUpstream,
	credentials.PasswordKey:  BackendUpstream,
	"CHATRELAY_UPSTREAM_URL": BackendUpstream,
	"GOOGLE_API_KEY":         BackendGemini,
}

// CheckManifest garante que toda chave listada no manifesto está presente e não
// vazia. Chaves indexadas (OPENAI_EMAIL_<idx>) satisfazem a chave base, e chaves
// de outro backend são ignoradas.
func CheckManifest(path string, env credentials.LookupFunc, hostname, backend string) error {
	if path == "" {
		return nil
	}
	required, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Debug().Str("path", path).Msg("no env manifest, skipping required keys check")
			return nil
		}
		return errors.Wrapf(err, "failed to parse env manifest %s", path)
	}

	var missing []string
	for key := range required {
		if owner, scoped := backendKeys[key]; scoped && owner != backend {
			continue
		}
		if _, ok := credentials.Lookup(env, key, hostname); !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return errors.Errorf("missing required environment variables: %s (see %s)", strings.Join(missing, ", "), path)
}

// Validate falha cedo com uma mensagem descritiva
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return errors.Errorf("invalid port %d", c.Port)
	}
	switch c.Backend {
	case BackendUpstream:
		if c.UpstreamURL == "" {
			return errors.New("CHATRELAY_UPSTREAM_URL is not set")
		}
		u, err := url.Parse(c.UpstreamURL)
		if err != nil {
			return errors.Wrap(err, "invalid upstream URL")
		}
		if u.Scheme == "" || u.Host == "" {
			return errors.Errorf("invalid upstream URL %q: scheme and host are required", c.UpstreamURL)
		}
		if c.Credentials.Email == "" || c.Credentials.Password == "" {
			return errors.Errorf("%s/%s are not set (nor %s/%s)",
				credentials.EmailKey, credentials.PasswordKey,
				credentials.IndexedKey(credentials.EmailKey, c.Hostname),
				credentials.IndexedKey(credentials.PasswordKey, c.Hostname))
		}
	case BackendGemini:
		if c.GoogleAPIKey == "" {
			return errors.New("GOOGLE_API_KEY is not set")
		}
		if c.GeminiModel == "" {
			return errors.New("gemini model is not set")
		}
	default:
		return errors.Errorf("unknown backend %q (expected %s or %s)", c.Backend, BackendUpstream, BackendGemini)
	}
	if c.UpstreamTimeout < 0 {
		return errors.Errorf("invalid upstream timeout %s", c.UpstreamTimeout)
	}
	return nil
}

// Addr retorna o endereço de escuta
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

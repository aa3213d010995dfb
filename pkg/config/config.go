package config

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MasterKey clave reservada para la conexión master.
const MasterKey = "master"

// Config agrupa la configuración de la aplicación (lectura vía Viper desde env y opcionalmente archivo).
type Config struct {
	App     AppConfig
	HTTP    HTTPConfig
	Master  DBConfig
	Shards  []ShardConfig
	Regions map[string]string // código de región -> clave de shard
	Pool    PoolConfig
	Engine  EngineConfig
	Notify  NotifyConfig
}

// AppConfig configuración general de la aplicación.
type AppConfig struct {
	Env      string // development, staging, production
	Name     string
	LogLevel string
}

// DBConfig configuración de una base PostgreSQL.
// Si DatabaseURL no está vacío, se usa como connection string completo.
type DBConfig struct {
	DatabaseURL string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
}

// ConnectionString devuelve el DSN a usar: DatabaseURL si está definido, si no el construido con DSN().
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DSN()
}

// DSN devuelve el connection string para PostgreSQL con URL encoding para caracteres especiales.
func (c DBConfig) DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: fmt.Sprintf("sslmode=%s", c.SSLMode),
	}
	return u.String()
}

// Empty indica que no hay datos de conexión.
func (c DBConfig) Empty() bool {
	return c.DatabaseURL == "" && c.Host == ""
}

// ShardConfig conexión de un shard regional.
type ShardConfig struct {
	Key string
	DB  DBConfig
}

// PoolConfig parámetros comunes a todos los pools (master y shards).
type PoolConfig struct {
	MaxConns    int32
	MinConns    int32
	ApplySchema bool
}

// EngineConfig parámetros del motor de documentos.
type EngineConfig struct {
	TxAttempts int
	TxBackoff  time.Duration
}

// NotifyConfig destino de las notificaciones post-commit.
type NotifyConfig struct {
	Driver        string // log, redis, none
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	ChannelPrefix string
	Buffer        int
}

// HTTPConfig configuración del servidor HTTP.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr devuelve la dirección de escucha (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load lee la configuración desde variables de entorno (y opcionalmente desde archivo).
// Las env vars tienen prioridad. Nombres esperados: APP_ENV, MASTER_DATABASE_URL, SHARD_KEYS, REGION_SHARDS, etc.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // ignoramos error si no existe

	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	return FromViper(v)
}

// FromViper construye la configuración a partir de una instancia de Viper ya poblada.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Env:      getString(v, "APP_ENV", "development"),
			Name:     getString(v, "APP_NAME", "kho-shard"),
			LogLevel: getString(v, "LOG_LEVEL", "info"),
		},
		HTTP: HTTPConfig{
			Host: getString(v, "HTTP_HOST", "0.0.0.0"),
			Port: getInt(v, "HTTP_PORT", 8080),
		},
		Master: DBConfig{
			DatabaseURL: getString(v, "MASTER_DATABASE_URL", ""),
			Host:        getString(v, "DB_HOST", ""),
			Port:        getInt(v, "DB_PORT", 5432),
			User:        getString(v, "DB_USER", "postgres"),
			Password:    getString(v, "DB_PASSWORD", ""),
			DBName:      getString(v, "DB_NAME", "quan_ly_kho"),
			SSLMode:     getString(v, "DB_SSLMODE", "disable"),
		},
		Pool: PoolConfig{
			MaxConns:    int32(getInt(v, "DB_MAX_CONNS", 25)),
			MinConns:    int32(getInt(v, "DB_MIN_CONNS", 2)),
			ApplySchema: getBool(v, "DB_APPLY_SCHEMA", true),
		},
		Engine: EngineConfig{
			TxAttempts: getInt(v, "ENGINE_TX_ATTEMPTS", 3),
			TxBackoff:  time.Duration(getInt(v, "ENGINE_TX_BACKOFF_MS", 50)) * time.Millisecond,
		},
		Notify: NotifyConfig{
			Driver:        getString(v, "NOTIFY_DRIVER", "log"),
			RedisAddr:     getString(v, "REDIS_ADDR", "localhost:6379"),
			RedisPassword: getString(v, "REDIS_PASSWORD", ""),
			RedisDB:       getInt(v, "REDIS_DB", 0),
			ChannelPrefix: getString(v, "NOTIFY_CHANNEL_PREFIX", "inventory"),
			Buffer:        getInt(v, "NOTIFY_BUFFER", 256),
		},
	}

	for _, key := range splitList(getString(v, "SHARD_KEYS", "")) {
		envKey := "SHARD_" + strings.ToUpper(key)
		cfg.Shards = append(cfg.Shards, ShardConfig{
			Key: key,
			DB: DBConfig{
				DatabaseURL: getString(v, envKey+"_DATABASE_URL", ""),
				Host:        getString(v, envKey+"_HOST", ""),
				Port:        getInt(v, envKey+"_PORT", 5432),
				User:        getString(v, envKey+"_USER", cfg.Master.User),
				Password:    getString(v, envKey+"_PASSWORD", ""),
				DBName:      getString(v, envKey+"_NAME", cfg.Master.DBName),
				SSLMode:     getString(v, envKey+"_SSLMODE", cfg.Master.SSLMode),
			},
		})
	}

	regions, err := parsePairs(getString(v, "REGION_SHARDS", ""))
	if err != nil {
		return nil, fmt.Errorf("REGION_SHARDS: %w", err)
	}
	cfg.Regions = regions

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate verifica que cada región apunte a un shard declarado y que las claves no se repitan.
func (c *Config) Validate() error {
	known := make(map[string]bool, len(c.Shards))
	for _, s := range c.Shards {
		if s.Key == MasterKey {
			return fmt.Errorf("la clave de shard %q está reservada", MasterKey)
		}
		if known[s.Key] {
			return fmt.Errorf("shard %q declarado dos veces", s.Key)
		}
		if s.DB.Empty() {
			return fmt.Errorf("shard %q sin datos de conexión", s.Key)
		}
		known[s.Key] = true
	}
	regions := make([]string, 0, len(c.Regions))
	for region := range c.Regions {
		regions = append(regions, region)
	}
	sort.Strings(regions)
	for _, region := range regions {
		if key := c.Regions[region]; !known[key] {
			return fmt.Errorf("región %q apunta a shard desconocido %q", region, key)
		}
	}
	if c.Engine.TxAttempts < 1 {
		c.Engine.TxAttempts = 1
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parsePairs interpreta "KV1=shard1,KV2=shard2". Los códigos de región quedan en mayúsculas.
func parsePairs(s string) (map[string]string, error) {
	out := make(map[string]string)
	for _, item := range splitList(s) {
		k, val, ok := strings.Cut(item, "=")
		k, val = strings.TrimSpace(k), strings.TrimSpace(val)
		if !ok || k == "" || val == "" {
			return nil, fmt.Errorf("par inválido %q", item)
		}
		k = strings.ToUpper(k)
		if _, dup := out[k]; dup {
			return nil, fmt.Errorf("región %q repetida", k)
		}
		out[k] = val
	}
	return out, nil
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if v.IsSet(key) {
		switch v.Get(key).(type) {
		case int:
			return v.GetInt(key)
		case string:
			n, err := strconv.Atoi(strings.TrimSpace(v.GetString(key)))
			if err != nil {
				return def
			}
			return n
		default:
			return v.GetInt(key)
		}
	}
	return def
}

func getBool(v *viper.Viper, key string, def bool) bool {
	if v.IsSet(key) {
		return v.GetBool(key)
	}
	return def
}

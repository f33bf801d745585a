package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Конечная структура конфигурации приложения.
type Config struct {
	Platform struct {
		URL       string        `mapstructure:"url"`        // http://localhost:8080
		Username  string        `mapstructure:"username"`   // логин для /api/auth/login
		Password  string        `mapstructure:"password"`   //
		Token     string        `mapstructure:"token"`      // готовый JWT, логин пропускается
		Timeout   time.Duration `mapstructure:"timeout"`    // на один запрос
		Retries   int           `mapstructure:"retries"`    // повторы на 5xx/429/сетевые
		RateLimit float64       `mapstructure:"rate_limit"` // запросов в секунду, 0 = без лимита
	} `mapstructure:"platform"`

	Sync struct {
		Concurrency        int `mapstructure:"concurrency"`          // ширина пула на категорию
		PageSize           int `mapstructure:"page_size"`            // размер страницы листинга
		DuplicateErrorCode int `mapstructure:"duplicate_error_code"` // код «уже существует»
	} `mapstructure:"sync"`

	Resolver struct {
		PageSize int `mapstructure:"page_size"`
	} `mapstructure:"resolver"`

	Backup struct {
		Dir string `mapstructure:"dir"` // корень дерева по умолчанию
	} `mapstructure:"backup"`

	Logging struct {
		Level  string `mapstructure:"level"`  // trace|debug|info|warning|error|fatal
		Format string `mapstructure:"format"` // text|json
		File   string `mapstructure:"file"`   // путь/префикс файла; пусто = только stdout
	} `mapstructure:"logs"`

	Database struct {
		Driver string `mapstructure:"driver"` // "postgres" | "mysql" | "" (журнал выключен)
		DSN    string `mapstructure:"dsn"`
	} `mapstructure:"database"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("platform.url", "http://localhost:8080")
	v.SetDefault("platform.username", "")
	v.SetDefault("platform.password", "")
	v.SetDefault("platform.token", "")
	v.SetDefault("platform.timeout", "30s")
	v.SetDefault("platform.retries", 2)
	v.SetDefault("platform.rate_limit", 0)

	v.SetDefault("sync.concurrency", 8)
	v.SetDefault("sync.page_size", 1000)
	v.SetDefault("sync.duplicate_error_code", 31)

	v.SetDefault("resolver.page_size", 10)
	v.SetDefault("backup.dir", "./backup")

	// Логи: дефолты
	v.SetDefault("logs.level", "info")
	v.SetDefault("logs.format", "text")
	v.SetDefault("logs.file", "")

	// DB: по умолчанию журнал выключен
	v.SetDefault("database.driver", "")
	v.SetDefault("database.dsn", "")
}

// Load читает конфиг из env/файла с дефолтами. file задаёт явный путь (флаг --config),
// иначе CONFIG_FILE, иначе tbmirror.yaml в стандартных каталогах.
func Load(file string) (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if file == "" {
		file = os.Getenv("CONFIG_FILE")
	}
	if file != "" {
		if _, err := os.Stat(file); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("tbmirror")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			v.AddConfigPath(filepath.Join(xdg, "tbmirror"))
		}
		v.AddConfigPath("/etc/tbmirror")
	}

	// Чтение файла (опционально)
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return nil, fmt.Errorf("config read error: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(c *Config) error {
	if strings.TrimSpace(c.Platform.URL) == "" {
		return errors.New("platform.url must not be empty")
	}
	u, err := url.Parse(c.Platform.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("platform.url is not a valid URL: %q", c.Platform.URL)
	}
	if c.Sync.Concurrency < 1 {
		return errors.New("sync.concurrency must be >= 1")
	}
	if c.Sync.PageSize < 1 {
		return errors.New("sync.page_size must be >= 1")
	}
	if c.Platform.Retries < 0 {
		return errors.New("platform.retries must be >= 0")
	}
	if c.Platform.RateLimit < 0 {
		return errors.New("platform.rate_limit must be >= 0")
	}
	return nil
}

// ValidatePlatform проверяет команды, которые ходят в платформу. Нужен токен или логин/пароль.
func (c *Config) ValidatePlatform() error {
	if strings.TrimSpace(c.Platform.Token) != "" {
		return nil
	}
	if strings.TrimSpace(c.Platform.Username) == "" || c.Platform.Password == "" {
		return errors.New("platform.token or platform.username/platform.password must be set")
	}
	return nil
}

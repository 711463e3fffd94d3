package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		AppName         string
		Env             string // DEV (local; default), TEST, QA, PROD
		Build           string
		Debug           bool
		TestMode        bool
		SecretKey       string
		FrontendBaseURL string
		WorkDir         string

		RollbarToken   string
		SendgridApiKey string

		defaultFromEmail string
		supportEmail     string

		Server   ServerConfig
		Database DatabaseConfig
		Storage  StorageConfig
		AI       AIConfig
		Content  ContentConfig
	}

	ServerConfig struct {
		Host                      string
		DebugHost                 string
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		ShutdownTimeout           time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	StorageConfig struct {
		Driver        string // local | s3
		Bucket        string
		LocalDir      string
		PublicBaseURL string
		S3Endpoint    string
		S3Region      string
		S3Key         string
		S3Secret      string
	}

	AIConfig struct {
		APIKey     string
		BaseURL    string
		Model      string
		MaxRetries int
		Timeout    time.Duration
	}

	ContentConfig struct {
		SanitizeHTML bool
	}
)

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, db.Port)
}

func (conf *Config) DefaultFromEmail() mail.Address {
	return parseAddress(conf.defaultFromEmail, conf.AppName)
}

func (conf *Config) SupportEmail() mail.Address {
	return parseAddress(conf.supportEmail, conf.AppName+" Support")
}

func parseAddress(raw, name string) mail.Address {
	if addr, err := mail.ParseAddress(raw); err == nil {
		return *addr
	}
	return mail.Address{Name: name, Address: raw}
}

// NewConfig loads the app configuration from defaults, the optional `config/.env.<env>` file and the environment.
func NewConfig() *Config {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return &Config{
		AppName:          v.GetString("appName"),
		Env:              env,
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		SecretKey:        v.GetString("secretKey"),
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		WorkDir:          wd,
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		defaultFromEmail: v.GetString("defaultFromEmail"),
		supportEmail:     v.GetString("supportEmail"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			DebugHost:                 v.GetString("server.debugHost"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Storage: StorageConfig{
			Driver:        v.GetString("storage.driver"),
			Bucket:        v.GetString("storage.bucket"),
			LocalDir:      v.GetString("storage.localDir"),
			PublicBaseURL: v.GetString("storage.publicBaseURL"),
			S3Endpoint:    v.GetString("storage.s3Endpoint"),
			S3Region:      v.GetString("storage.s3Region"),
			S3Key:         v.GetString("storage.s3Key"),
			S3Secret:      v.GetString("storage.s3Secret"),
		},
		AI: AIConfig{
			APIKey:     v.GetString("ai.apiKey"),
			BaseURL:    v.GetString("ai.baseURL"),
			Model:      v.GetString("ai.model"),
			MaxRetries: v.GetInt("ai.maxRetries"),
			Timeout:    v.GetDuration("ai.timeout"),
		},
		Content: ContentConfig{
			SanitizeHTML: v.GetBool("content.sanitizeHTML"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)

	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "CourseLogic")
	v.SetDefault("build", "dev")
	v.SetDefault("secretKey", "k2n$8vq!e0x+wl@7c^u(3z)r9dfh1m&a5o-gyjp4b6t=is")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("supportEmail", "support@localhost")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")

	v.SetDefault("server.host", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "courselogic")
	v.SetDefault("database.user", "courselogic")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.bucket", "course_media")
	v.SetDefault("storage.localDir", "media")
	v.SetDefault("storage.publicBaseURL", "http://localhost:8000/media")
	v.SetDefault("storage.s3Endpoint", "")
	v.SetDefault("storage.s3Region", "auto")
	v.SetDefault("storage.s3Key", "")
	v.SetDefault("storage.s3Secret", "")

	v.SetDefault("ai.apiKey", "")
	v.SetDefault("ai.baseURL", "https://generativelanguage.googleapis.com")
	v.SetDefault("ai.model", "gemini-1.5-flash-latest")
	v.SetDefault("ai.maxRetries", 5)
	v.SetDefault("ai.timeout", 90*time.Second)

	v.SetDefault("content.sanitizeHTML", true)
}

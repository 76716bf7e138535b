package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Upload  UploadConfig  `yaml:"upload"`
	Intake  IntakeConfig  `yaml:"intake"`
	Email   EmailConfig   `yaml:"email"`
	Admin   AdminConfig   `yaml:"admin"`
	Auth    AuthConfig    `yaml:"auth"`
	Log     LogConfig     `yaml:"log"`
	Users   []User        `yaml:"users"`
}

type ServerConfig struct {
	Port               int      `yaml:"port"`
	StaticDir          string   `yaml:"static_dir"`
	MaxMultipartMemory int64    `yaml:"max_multipart_memory"`
	CORSOrigins        []string `yaml:"cors_origins"`
	RateLimit          int      `yaml:"rate_limit"` // submissions per minute per IP
}

// Storage backend names
const (
	BackendLocal  = "local"
	BackendMinio  = "minio"
	BackendMemory = "memory"
)

type StorageConfig struct {
	Backend string      `yaml:"backend"`
	Local   LocalConfig `yaml:"local"`
	Minio   MinioConfig `yaml:"minio"`
}

type LocalConfig struct {
	Root string `yaml:"root"`
}

type MinioConfig struct {
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	Bucket     string `yaml:"bucket"`
	UseSSL     bool   `yaml:"use_ssl"`
	ExpireDays int    `yaml:"expire_days"`
}

type UploadConfig struct {
	MaxFileSize       int64    `yaml:"max_file_size"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
	AllowedMimeTypes  []string `yaml:"allowed_mime_types"`
}

// Intake delivery modes
const (
	ModeSync  = "sync"
	ModeAsync = "async"
)

type IntakeConfig struct {
	Mode string `yaml:"mode"`
}

type EmailConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	From         string `yaml:"from"`
	AdminAddress string `yaml:"admin_address"`
}

// Enabled reports whether enough is configured to send mail
func (e EmailConfig) Enabled() bool {
	return e.Host != "" && e.AdminAddress != ""
}

type AdminConfig struct {
	PageSize int `yaml:"page_size"`
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
	AllowPlaintext   bool   `yaml:"allow_plaintext"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// User is an admin account. Password holds a bcrypt hash, or plain text
// when auth.allow_plaintext is set.
type User struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

const defaultMaxFileSize = 10 << 20

var (
	defaultExtensions = []string{".pdf", ".doc", ".docx", ".jpg", ".jpeg", ".png"}
	defaultMimeTypes  = []string{
		"application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"image/jpeg",
		"image/png",
	}
)

// Load reads the YAML file at path, applies environment overrides and
// defaults. A missing file is not an error; the environment alone can
// configure the server.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadEnvFile loads variables from .env style files into the process
// environment without overriding variables that are already set.
func LoadEnvFile(paths ...string) error {
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

func (c *Config) applyEnv() {
	setInt(&c.Server.Port, "PORT")
	setString(&c.Server.StaticDir, "STATIC_DIR")
	setList(&c.Server.CORSOrigins, "CORS_ORIGINS")

	setString(&c.Storage.Backend, "STORAGE_BACKEND")
	setString(&c.Storage.Local.Root, "UPLOAD_DIR")
	setString(&c.Storage.Minio.Endpoint, "MINIO_ENDPOINT")
	setString(&c.Storage.Minio.AccessKey, "MINIO_ACCESS_KEY")
	setString(&c.Storage.Minio.SecretKey, "MINIO_SECRET_KEY")
	setString(&c.Storage.Minio.Bucket, "MINIO_BUCKET")
	setBool(&c.Storage.Minio.UseSSL, "MINIO_USE_SSL")

	setInt64(&c.Upload.MaxFileSize, "MAX_FILE_SIZE")
	setList(&c.Upload.AllowedExtensions, "ALLOWED_EXTENSIONS")
	setList(&c.Upload.AllowedMimeTypes, "ALLOWED_MIME_TYPES")

	setString(&c.Intake.Mode, "INTAKE_MODE")

	setString(&c.Email.Host, "EMAIL_HOST")
	setInt(&c.Email.Port, "EMAIL_PORT")
	setString(&c.Email.Username, "EMAIL_USER")
	setString(&c.Email.Password, "EMAIL_PASSWORD")
	setString(&c.Email.From, "EMAIL_FROM")
	setString(&c.Email.AdminAddress, "ADMIN_EMAIL")

	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setBool(&c.Auth.AllowPlaintext, "AUTH_ALLOW_PLAINTEXT")
	if name, pass := os.Getenv("ADMIN_USERNAME"), os.Getenv("ADMIN_PASSWORD"); name != "" && pass != "" && c.FindUser(name) == nil {
		c.Users = append(c.Users, User{Username: name, Password: pass})
	}

	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 3001
	}
	if c.Server.MaxMultipartMemory == 0 {
		c.Server.MaxMultipartMemory = 8 << 20
	}
	if c.Server.RateLimit == 0 {
		c.Server.RateLimit = 20
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendLocal
	}
	if c.Storage.Local.Root == "" {
		c.Storage.Local.Root = "uploads"
	}
	if c.Storage.Minio.ExpireDays == 0 {
		c.Storage.Minio.ExpireDays = 7
	}
	if c.Upload.MaxFileSize == 0 {
		c.Upload.MaxFileSize = defaultMaxFileSize
	}
	if len(c.Upload.AllowedExtensions) == 0 {
		c.Upload.AllowedExtensions = append([]string(nil), defaultExtensions...)
	}
	if len(c.Upload.AllowedMimeTypes) == 0 {
		c.Upload.AllowedMimeTypes = append([]string(nil), defaultMimeTypes...)
	}
	if c.Intake.Mode == "" {
		c.Intake.Mode = ModeSync
	}
	if c.Email.Port == 0 {
		c.Email.Port = 587
	}
	if c.Email.From == "" {
		c.Email.From = c.Email.Username
	}
	if c.Admin.PageSize == 0 {
		c.Admin.PageSize = 10
	}
	if c.Auth.TokenExpireHours == 0 {
		c.Auth.TokenExpireHours = 12
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate rejects settings the server cannot start with
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendLocal, BackendMinio, BackendMemory:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend == BackendMinio && (c.Storage.Minio.Endpoint == "" || c.Storage.Minio.Bucket == "") {
		return errors.New("minio backend requires endpoint and bucket")
	}
	switch c.Intake.Mode {
	case ModeSync, ModeAsync:
	default:
		return fmt.Errorf("unknown intake mode %q", c.Intake.Mode)
	}
	if c.Upload.MaxFileSize < 0 {
		return errors.New("upload.max_file_size must be positive")
	}
	return nil
}

// FindUser finds an admin user by username
func (c *Config) FindUser(username string) *User {
	for i := range c.Users {
		if c.Users[i].Username == username {
			return &c.Users[i]
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setList(dst *[]string, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}

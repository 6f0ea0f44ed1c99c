package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	LLM      LLMConfig      `yaml:"llm"`
	Skill    SkillConfig    `yaml:"skill"`
	Blob     BlobConfig     `yaml:"blob"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release, test
	// CORSOrigins 为空时允许所有来源
	CORSOrigins []string `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	Type string `yaml:"type"` // sqlite, mysql
	DSN  string `yaml:"dsn"`
}

type LLMConfig struct {
	APIURL    string `yaml:"api_url"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// Enabled 未配置 API Key 时不启用对话
func (c LLMConfig) Enabled() bool {
	return c.APIKey != ""
}

type SkillConfig struct {
	PublicDir      string        `yaml:"public_dir"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
	AutoReload     bool          `yaml:"auto_reload"`
	ReloadDebounce time.Duration `yaml:"reload_debounce"`
	MaxInjected    int           `yaml:"max_injected"`
	RemoteTimeout  time.Duration `yaml:"remote_timeout"`
}

type BlobConfig struct {
	Enabled           bool   `yaml:"enabled"`
	Type              string `yaml:"type"` // local, r2, memory
	Dir               string `yaml:"dir"`
	R2AccountID       string `yaml:"r2_account_id"`
	R2AccessKeyID     string `yaml:"r2_access_key_id"`
	R2SecretAccessKey string `yaml:"r2_secret_access_key"`
	R2Bucket          string `yaml:"r2_bucket"`
	R2Endpoint        string `yaml:"r2_endpoint"`
}

// Default 默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
			Mode: "debug",
		},
		Database: DatabaseConfig{
			Type: "sqlite",
			DSN:  "./data/app.db",
		},
		LLM: LLMConfig{
			APIURL:    "https://api.openai.com/v1",
			Model:     "gpt-4o",
			MaxTokens: 4096,
		},
		Skill: SkillConfig{
			PublicDir:      "./skills/public",
			CacheTTL:       300 * time.Second,
			ReloadDebounce: 500 * time.Millisecond,
			MaxInjected:    3,
			RemoteTimeout:  5 * time.Second,
		},
		Blob: BlobConfig{
			Type:     "local",
			Dir:      "./data/blobs",
			R2Bucket: "skills-storage",
		},
	}
}

// Load 依次加载默认值、配置文件、.env 与环境变量，后者优先
func Load() (*Config, error) {
	config := Default()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("解析配置文件失败 %s: %w", configPath, err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("读取配置文件失败 %s: %w", configPath, err)
	}

	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		klog.Warningf("加载 %s 失败: %v", envFile, err)
	}

	applyEnv(config)
	return config, nil
}

// applyEnv 环境变量优先级高于配置文件
func applyEnv(config *Config) {
	setString(&config.Server.Port, "PORT")
	setString(&config.Server.Mode, "GIN_MODE")

	setString(&config.LLM.APIKey, "OPENAI_API_KEY")
	setString(&config.LLM.APIURL, "OPENAI_BASE_URL")
	setString(&config.LLM.Model, "OPENAI_MODEL_NAME")

	setString(&config.Database.Type, "DB_TYPE")
	setString(&config.Database.DSN, "DB_DSN")

	setString(&config.Skill.PublicDir, "SKILL_DIR")
	setDuration(&config.Skill.CacheTTL, "SKILL_CACHE_TTL")
	setBool(&config.Skill.AutoReload, "SKILL_AUTO_RELOAD")
	setInt(&config.Skill.MaxInjected, "SKILL_MAX_INJECTED")
	setDuration(&config.Skill.RemoteTimeout, "SKILL_REMOTE_TIMEOUT")

	setBool(&config.Blob.Enabled, "BLOB_ENABLED")
	setString(&config.Blob.Type, "BLOB_TYPE")
	setString(&config.Blob.Dir, "BLOB_DIR")
	setString(&config.Blob.R2AccountID, "R2_ACCOUNT_ID")
	setString(&config.Blob.R2AccessKeyID, "R2_ACCESS_KEY_ID")
	setString(&config.Blob.R2SecretAccessKey, "R2_SECRET_ACCESS_KEY")
	setString(&config.Blob.R2Bucket, "R2_BUCKET")
	setString(&config.Blob.R2Endpoint, "R2_ENDPOINT")
}

// Validate 检查无法运行的配置
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port 不能为空"))
	}
	switch c.Database.Type {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Errorf("不支持的数据库类型: %s", c.Database.Type))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn 不能为空"))
	}
	if c.Skill.PublicDir == "" {
		errs = append(errs, errors.New("skill.public_dir 不能为空"))
	}
	if c.Skill.CacheTTL < 0 || c.Skill.RemoteTimeout < 0 || c.Skill.ReloadDebounce < 0 {
		errs = append(errs, errors.New("skill 时间配置不能为负数"))
	}
	if c.Skill.MaxInjected < 0 {
		errs = append(errs, errors.New("skill.max_injected 不能为负数"))
	}
	if c.Blob.Enabled {
		switch c.Blob.Type {
		case "local":
			if c.Blob.Dir == "" {
				errs = append(errs, errors.New("blob.dir 不能为空"))
			}
		case "memory", "r2":
		default:
			errs = append(errs, fmt.Errorf("不支持的存储类型: %s", c.Blob.Type))
		}
	}
	return errors.Join(errs...)
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		klog.Warningf("环境变量 %s 格式错误: %v", key, err)
		return
	}
	*dst = b
}

func setInt(dst *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		klog.Warningf("环境变量 %s 格式错误: %v", key, err)
		return
	}
	*dst = n
}

func setDuration(dst *time.Duration, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		klog.Warningf("环境变量 %s 格式错误: %v", key, err)
		return
	}
	*dst = d
}

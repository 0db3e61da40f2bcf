package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/jellydator/validation"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stellar/go/strkey"
)

// Config holds application configuration. It is built once by Load and passed
// by value; nothing mutates it afterwards.
type Config struct {
	Network  NetworkConfig  `mapstructure:"network"`
	Contract ContractConfig `mapstructure:"contract"`
	Features FeatureConfig  `mapstructure:"features"`
	Poll     PollConfig     `mapstructure:"poll"`
	UI       UIConfig       `mapstructure:"ui"`
	Wallet   WalletConfig   `mapstructure:"wallet"`
	Log      LogConfig      `mapstructure:"log"`
	HTTP     HTTPConfig     `mapstructure:"http"`
}

// NetworkConfig points at one Stellar network.
type NetworkConfig struct {
	Name       string `mapstructure:"name"`
	Passphrase string `mapstructure:"passphrase"`
	RPCURL     string `mapstructure:"rpc_url"`
	HorizonURL string `mapstructure:"horizon_url"`
}

// ContractConfig identifies the deposit contract.
type ContractConfig struct {
	Address string `mapstructure:"address"`
}

// FeatureConfig toggles optional parts of the screen.
type FeatureConfig struct {
	Withdraw bool `mapstructure:"withdraw"`
}

// PollConfig bounds the confirmation poll.
type PollConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

// UIConfig holds presentation settings.
type UIConfig struct {
	AppName    string        `mapstructure:"app_name"`
	MessageTTL time.Duration `mapstructure:"message_ttl"`
}

// WalletConfig selects the keystore wallet.
type WalletConfig struct {
	Name            string `mapstructure:"name"`
	Keystore        string `mapstructure:"keystore"`
	AutoApproveSign bool   `mapstructure:"auto_approve_sign"`
}

// LogConfig holds zap settings.
type LogConfig struct {
	Path  string `mapstructure:"path"`
	Level string `mapstructure:"level"`
}

// HTTPConfig holds client settings shared by the ledger gateways.
type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// Flag names bound onto config keys when a flag set is passed to Load.
const (
	FlagNetwork    = "network"
	FlagRPCURL     = "rpc-url"
	FlagHorizonURL = "horizon-url"
	FlagContract   = "contract"
	FlagWallet     = "wallet"
	FlagKeystore   = "keystore"
	FlagLogPath    = "log-path"
	FlagLogLevel   = "log-level"
	FlagNoWithdraw = "no-withdraw"
)

var flagKeys = map[string]string{
	FlagNetwork:    "network.name",
	FlagRPCURL:     "network.rpc_url",
	FlagHorizonURL: "network.horizon_url",
	FlagContract:   "contract.address",
	FlagWallet:     "wallet.name",
	FlagKeystore:   "wallet.keystore",
	FlagLogPath:    "log.path",
	FlagLogLevel:   "log.level",
}

// RegisterFlags adds the overridable settings to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(FlagNetwork, DefaultNetwork, "network preset (testnet, futurenet, mainnet)")
	fs.String(FlagRPCURL, "", "Soroban RPC endpoint (overrides the preset)")
	fs.String(FlagHorizonURL, "", "Horizon endpoint (overrides the preset)")
	fs.String(FlagContract, "", "deposit contract address")
	fs.String(FlagWallet, "", "keystore wallet name")
	fs.String(FlagKeystore, "", "keystore file path")
	fs.String(FlagLogPath, "", "log file path")
	fs.String(FlagLogLevel, "", "log level (debug, info, warn, error)")
	fs.Bool(FlagNoWithdraw, false, "deposit-only mode (no contract balance, no withdraw)")
}

// Load reads configuration from defaults, an optional TOML file, env and
// flags, in increasing priority. Env var overrides use prefix SORODEPOSIT_.
func Load(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()

	v.SetDefault("network.name", DefaultNetwork)
	v.SetDefault("features.withdraw", true)
	v.SetDefault("poll.interval", time.Second)
	v.SetDefault("poll.max_attempts", 20)
	v.SetDefault("ui.app_name", "Soroban Deposit")
	v.SetDefault("ui.message_ttl", 3000*time.Millisecond)
	v.SetDefault("wallet.name", "default")
	v.SetDefault("wallet.keystore", defaultKeystorePath())
	v.SetDefault("wallet.auto_approve_sign", false)
	v.SetDefault("log.path", defaultLogPath())
	v.SetDefault("log.level", "info")
	v.SetDefault("http.timeout", 15*time.Second)

	v.SetConfigType("toml")

	cfgPath := os.Getenv("SORODEPOSIT_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(userConfigDir(), "sorodeposit"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("SORODEPOSIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if fs != nil {
		if err := bindFlags(v, fs); err != nil {
			return Config{}, err
		}
	}

	preset, err := LookupNetwork(v.GetString("network.name"))
	if err != nil {
		return Config{}, err
	}
	v.SetDefault("network.passphrase", preset.Passphrase)
	v.SetDefault("network.rpc_url", preset.RPCURL)
	v.SetDefault("network.horizon_url", preset.HorizonURL)
	v.SetDefault("contract.address", preset.Contract)

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	c.Network.Name = preset.Name
	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for flag, key := range flagKeys {
		f := fs.Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}
	if f := fs.Lookup(FlagNoWithdraw); f != nil && f.Changed {
		noWithdraw, err := fs.GetBool(FlagNoWithdraw)
		if err != nil {
			return fmt.Errorf("read flag %s: %w", FlagNoWithdraw, err)
		}
		v.Set("features.withdraw", !noWithdraw)
	}
	return nil
}

var httpURL = regexp.MustCompile(`^https?://[^\s/]+`)

// Validate checks that every gateway endpoint and the contract are usable.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Network),
		validation.Field(&c.Contract),
		validation.Field(&c.Poll),
		validation.Field(&c.UI),
		validation.Field(&c.Wallet),
	)
}

func (n NetworkConfig) Validate() error {
	return validation.ValidateStruct(&n,
		validation.Field(&n.Passphrase, validation.Required),
		validation.Field(&n.RPCURL, validation.Required, validation.Match(httpURL)),
		validation.Field(&n.HorizonURL, validation.Required, validation.Match(httpURL)),
	)
}

func (cc ContractConfig) Validate() error {
	return validation.ValidateStruct(&cc,
		validation.Field(&cc.Address, validation.Required, validation.By(contractAddress)),
	)
}

func (p PollConfig) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Interval, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&p.MaxAttempts, validation.Required, validation.Min(1)),
	)
}

func (u UIConfig) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.MessageTTL, validation.Required, validation.Min(time.Millisecond)),
	)
}

func (w WalletConfig) Validate() error {
	return validation.ValidateStruct(&w,
		validation.Field(&w.Name, validation.Required),
		validation.Field(&w.Keystore, validation.Required),
	)
}

func contractAddress(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := strkey.Decode(strkey.VersionByteContract, s); err != nil {
		return fmt.Errorf("must be a contract strkey (C...)")
	}
	return nil
}

func userConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir
	}
	return filepath.Join(os.Getenv("HOME"), ".config")
}

func defaultKeystorePath() string {
	return filepath.Join(userConfigDir(), "sorodeposit", "keystore.json")
}

func defaultLogPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "sorodeposit", "sorodeposit.log")
}

// Suggest returns the known network name closest to name, or "" when nothing
// is reasonably close.
func Suggest(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	best, bestDist := "", 3
	for _, known := range NetworkNames() {
		if d := levenshtein.ComputeDistance(name, known); d < bestDist {
			best, bestDist = known, d
		}
	}
	return best
}

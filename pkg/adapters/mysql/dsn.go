package mysql

import (
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	qerr "github.com/JonnyJiang123/smart-sql/pkg/errors"
	"github.com/go-sql-driver/mysql"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cast"
)

// Options are driver settings read from the connection's params and from
// the query string of a mysql:// URL. Unknown keys become session variables.
type Options struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	TLS          string        `mapstructure:"tls"`
	Charset      string        `mapstructure:"charset"`
	ParseTime    bool          `mapstructure:"parse_time"`
}

// BuildDSN converts a connection string into a go-sql-driver DSN.
// Both mysql:// URLs and native "user:pass@tcp(host:port)/db" DSNs are accepted.
func BuildDSN(connStr string, params map[string]any) (string, error) {
	if !strings.Contains(connStr, "://") {
		cfg, err := mysql.ParseDSN(connStr)
		if err != nil {
			return "", qerr.Wrapf(err, qerr.CodeInvalidConnectionConfig, "invalid mysql DSN: %v", err)
		}
		if err := applyOptions(cfg, params); err != nil {
			return "", err
		}
		return cfg.FormatDSN(), nil
	}

	u, err := url.Parse(connStr)
	if err != nil {
		return "", qerr.Wrapf(err, qerr.CodeInvalidConnectionConfig, "invalid mysql URL: %v", err)
	}
	if u.Scheme != "mysql" && u.Scheme != "mariadb" {
		return "", qerr.Newf(qerr.CodeInvalidConnectionConfig, "unexpected scheme %q for mysql connection", u.Scheme)
	}

	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	if u.Port() == "" {
		cfg.Addr = net.JoinHostPort(u.Hostname(), strconv.Itoa(3306))
	}
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}
	cfg.DBName = strings.TrimPrefix(u.Path, "/")

	merged := make(map[string]any, len(params))
	for k, v := range u.Query() {
		if len(v) > 0 {
			merged[k] = v[0]
		}
	}
	for k, v := range params {
		merged[k] = v
	}
	if err := applyOptions(cfg, merged); err != nil {
		return "", err
	}
	return cfg.FormatDSN(), nil
}

func applyOptions(cfg *mysql.Config, params map[string]any) error {
	if len(params) == 0 {
		return nil
	}

	var opts Options
	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Metadata:         &md,
		Result:           &opts,
	})
	if err != nil {
		return qerr.Wrap(err, qerr.CodeInternal, "failed to build params decoder")
	}
	if err := dec.Decode(params); err != nil {
		return qerr.Wrapf(err, qerr.CodeInvalidConnectionConfig, "invalid mysql params: %v", err)
	}

	if opts.Timeout > 0 {
		cfg.Timeout = opts.Timeout
	}
	if opts.ReadTimeout > 0 {
		cfg.ReadTimeout = opts.ReadTimeout
	}
	if opts.WriteTimeout > 0 {
		cfg.WriteTimeout = opts.WriteTimeout
	}
	if opts.TLS != "" {
		cfg.TLSConfig = opts.TLS
	}
	if opts.ParseTime {
		cfg.ParseTime = true
	}

	for _, key := range md.Unused {
		if cfg.Params == nil {
			cfg.Params = make(map[string]string)
		}
		cfg.Params[key] = cast.ToString(params[key])
	}
	if opts.Charset != "" {
		if cfg.Params == nil {
			cfg.Params = make(map[string]string)
		}
		cfg.Params["charset"] = opts.Charset
	}
	return nil
}

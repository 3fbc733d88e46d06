// Package mongodb provides the MongoDB adapter.
//
// Queries arrive as shell-style text (db.users.find({...})) and are reduced
// to a structured command by pkg/shell. Denied operators are stripped by
// pkg/docfilter before anything reaches the server, and every command is
// row-limited the same way SQL statements are.
package mongodb

import (
	"context"
	"time"

	"github.com/JonnyJiang123/smart-sql/pkg/adapter"
	"github.com/JonnyJiang123/smart-sql/pkg/core"
	"github.com/JonnyJiang123/smart-sql/pkg/docfilter"
	qerr "github.com/JonnyJiang123/smart-sql/pkg/errors"
	"github.com/JonnyJiang123/smart-sql/pkg/shell"
	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
)

// Adapter implements the adapter.Adapter interface for MongoDB.
type Adapter struct {
	client   *mongo.Client
	database *mongo.Database
	logger   zerolog.Logger
}

// New creates a new MongoDB adapter instance.
func New(logger zerolog.Logger) *Adapter {
	return &Adapter{logger: logger}
}

// NewWithClient wraps an already connected client.
func NewWithClient(client *mongo.Client, database string, logger zerolog.Logger) *Adapter {
	return &Adapter{
		client:   client,
		database: client.Database(database),
		logger:   logger,
	}
}

// Kind returns core.BackendMongoDB.
func (a *Adapter) Kind() core.BackendKind {
	return core.BackendMongoDB
}

// Connect dials the deployment and selects the connection's database.
// When the connection does not name a database, the one in the URI is used.
func (a *Adapter) Connect(ctx context.Context, conn *core.Connection) error {
	uri, err := conn.BuildConnectionString()
	if err != nil {
		return err
	}

	dbName, err := DatabaseName(uri, conn.Database)
	if err != nil {
		return err
	}

	a.logger.Debug().Str("host", conn.Host).Str("database", dbName).Msg("connecting to mongodb")

	clientOpts, err := ClientOptions(uri, conn.Params)
	if err != nil {
		return err
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return qerr.Wrapf(err, qerr.CodeConnectionFailed, "failed to connect to mongodb: %v", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return qerr.Wrapf(err, qerr.CodeConnectionFailed, "failed to ping mongodb: %v", err)
	}

	a.client = client
	a.database = client.Database(dbName)
	return nil
}

// Options are the connection params understood by the MongoDB adapter.
type Options struct {
	AppName                string        `mapstructure:"app_name"`
	ServerSelectionTimeout time.Duration `mapstructure:"server_selection_timeout"`
}

// ClientOptions applies uri and params to a fresh client configuration.
func ClientOptions(uri string, params map[string]any) (*options.ClientOptions, error) {
	opts := options.Client().ApplyURI(uri)
	if len(params) == 0 {
		return opts, nil
	}

	var o Options
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           &o,
	})
	if err != nil {
		return nil, qerr.Wrap(err, qerr.CodeInternal, "failed to build params decoder")
	}
	if err := dec.Decode(params); err != nil {
		return nil, qerr.Wrapf(err, qerr.CodeInvalidConnectionConfig, "invalid mongodb params: %v", err)
	}

	if o.AppName != "" {
		opts.SetAppName(o.AppName)
	}
	if o.ServerSelectionTimeout > 0 {
		opts.SetServerSelectionTimeout(o.ServerSelectionTimeout)
	}
	return opts, nil
}

// DatabaseName picks the explicit database or, failing that, the URI's path.
func DatabaseName(uri, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return "", qerr.Wrapf(err, qerr.CodeInvalidConnectionConfig, "invalid mongodb connection string: %v", err)
	}
	if cs.Database == "" {
		return "", qerr.New(qerr.CodeInvalidConnectionConfig, "mongodb connection requires database_name").
			WithDetail("field", "database_name")
	}
	return cs.Database, nil
}

// Close disconnects the client.
func (a *Adapter) Close() error {
	if a.client == nil {
		return nil
	}
	a.logger.Debug().Msg("closing mongodb connection")
	err := a.client.Disconnect(context.Background())
	a.client = nil
	a.database = nil
	return err
}

// Ping verifies the primary is reachable.
func (a *Adapter) Ping(ctx context.Context) error {
	if a.client == nil {
		return adapter.ErrNotConnected
	}
	if err := a.client.Ping(ctx, readpref.Primary()); err != nil {
		return qerr.Wrapf(err, qerr.CodeConnectionFailed, "ping failed: %v", err)
	}
	return nil
}

// ServerVersion reports buildInfo.version.
func (a *Adapter) ServerVersion(ctx context.Context) (string, error) {
	if a.database == nil {
		return "", adapter.ErrNotConnected
	}
	var info struct {
		Version string `bson:"version"`
	}
	if err := a.database.RunCommand(ctx, bson.D{{Key: "buildInfo", Value: 1}}).Decode(&info); err != nil {
		return "", qerr.Wrapf(err, qerr.CodeQueryExecutionFailed, "buildInfo failed: %v", err)
	}
	return info.Version, nil
}

// Execute runs a shell-style find or aggregate command.
func (a *Adapter) Execute(ctx context.Context, query string) (*core.QueryResult, error) {
	if a.database == nil {
		return nil, adapter.ErrNotConnected
	}

	cmd, err := shell.Extract(query)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	docs, err := a.run(ctx, cmd)
	if err != nil {
		return nil, adapter.ExecutionError(ctx, err)
	}

	columns, rows := Normalize(docs)
	elapsed := time.Since(start)

	a.logger.Debug().
		Str("collection", cmd.Collection).
		Str("operation", string(cmd.Operation)).
		Int("rows", len(rows)).
		Dur("elapsed", elapsed).
		Msg("query executed")

	return &core.QueryResult{
		Columns:         columns,
		Rows:            rows,
		RowCount:        len(rows),
		ExecutionTimeMs: elapsed.Milliseconds(),
	}, nil
}

func (a *Adapter) run(ctx context.Context, cmd *shell.Command) ([]bson.M, error) {
	coll := a.database.Collection(cmd.Collection)

	var cursor *mongo.Cursor
	var err error
	switch cmd.Operation {
	case shell.OpAggregate:
		cursor, err = coll.Aggregate(ctx, docfilter.FilterPipeline(cmd.Pipeline))
	default:
		opts := options.Find().SetLimit(cmd.Limit)
		if proj := docfilter.Filter(cmd.Projection); len(proj) > 0 {
			opts.SetProjection(proj)
		}
		cursor, err = coll.Find(ctx, findFilter(cmd), opts)
	}
	if err != nil {
		return nil, err
	}

	docs := make([]bson.M, 0)
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func findFilter(cmd *shell.Command) bson.D {
	filter := docfilter.Filter(cmd.Filter)
	if filter == nil {
		return bson.D{}
	}
	return filter
}

var _ adapter.Adapter = (*Adapter)(nil)

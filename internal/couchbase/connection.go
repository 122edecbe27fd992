package couchbase

import (
	"fmt"
	"time"

	"github.com/couchbase/gocb/v2"
	"github.com/rs/zerolog/log"
)

// Connection wraps the Couchbase cluster and bucket holding the shared
// clinic state. Both logical tables (calls, history) live in the bucket's
// default scope as separate collections.
type Connection struct {
	cluster    *gocb.Cluster
	bucket     *gocb.Bucket
	bucketName string
}

// Options configures a Couchbase connection.
type Options struct {
	URL      string
	Username string
	Password string
	Bucket   string
}

// NewConnection connects to the cluster and waits for the bucket to serve
// both key/value and query traffic.
func NewConnection(opts Options) (*Connection, error) {
	log.Info().
		Str("url", opts.URL).
		Str("bucket", opts.Bucket).
		Msg("Creating Couchbase connection")

	cluster, err := gocb.Connect(opts.URL, gocb.ClusterOptions{
		Authenticator: gocb.PasswordAuthenticator{
			Username: opts.Username,
			Password: opts.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connect cluster: %w", err)
	}

	bucket := cluster.Bucket(opts.Bucket)
	err = bucket.WaitUntilReady(30*time.Second, &gocb.WaitUntilReadyOptions{
		ServiceTypes: []gocb.ServiceType{gocb.ServiceTypeKeyValue, gocb.ServiceTypeQuery},
	})
	if err != nil {
		return nil, fmt.Errorf("bucket %q not ready: %w", opts.Bucket, err)
	}

	log.Info().Msg("Couchbase connection created successfully")
	return &Connection{
		cluster:    cluster,
		bucket:     bucket,
		bucketName: opts.Bucket,
	}, nil
}

// Close closes the cluster connection.
func (c *Connection) Close() error {
	if c.cluster != nil {
		return c.cluster.Close(nil)
	}
	return nil
}

// Collection returns a named collection in the default scope.
func (c *Connection) Collection(name string) *gocb.Collection {
	return c.bucket.Scope("_default").Collection(name)
}

// Query runs a N1QL statement against the cluster.
func (c *Connection) Query(statement string, opts *gocb.QueryOptions) (*gocb.QueryResult, error) {
	return c.cluster.Query(statement, opts)
}

// KeyspaceFor returns the fully qualified keyspace for a collection,
// usable inside N1QL statements.
func (c *Connection) KeyspaceFor(collection string) string {
	return fmt.Sprintf("`%s`.`_default`.`%s`", c.bucketName, collection)
}

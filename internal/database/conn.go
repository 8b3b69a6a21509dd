package database

import (
	"encoding/json"
	"fmt"

	"github.com/surrealdb/surrealdb.go"

	"github.com/iskng/embed-star/config"
)

// conn is one signed-in connection to the document store. The pool owns a
// small fixed set of these; the underlying driver multiplexes everything
// over one websocket per conn, so "pool" here spreads concurrent query load
// across a handful of independent sessions rather than sharing a single one.
type conn struct {
	db *surrealdb.DB
}

func dial(cfg config.DatabaseConfig) (*conn, error) {
	db, err := surrealdb.New(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("database: dial %s: %w", cfg.URL, err)
	}

	if _, err := db.SignIn(&surrealdb.Auth{
		Username: cfg.User,
		Password: cfg.Pass,
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("database: sign in: %w", err)
	}

	if err := db.Use(cfg.Namespace, cfg.Database); err != nil {
		db.Close()
		return nil, fmt.Errorf("database: use %s/%s: %w", cfg.Namespace, cfg.Database, err)
	}

	return &conn{db: db}, nil
}

func (c *conn) close() {
	c.db.Close()
}

// query runs raw SurrealQL with bound variables and smart-unmarshals the
// first statement's result into out.
func (c *conn) query(ql string, vars map[string]any, out any) error {
	res, err := c.db.Query(ql, vars)
	if err != nil {
		return err
	}
	return surrealdb.SmartUnmarshal(res, out)
}

// statementResult is one entry of a multi-statement query's response: the
// server reports status/result (or an error detail) per semicolon-joined
// statement, in the order the statements were sent.
type statementResult struct {
	Status string `json:"status"`
	Result any    `json:"result"`
	Detail string `json:"detail"`
}

// queryStatements runs raw SurrealQL with bound variables and returns the
// per-statement status the server reports, one entry per semicolon-joined
// statement, so a caller running several UPDATEs in one round trip can
// tell exactly which statements succeeded instead of treating the whole
// response as one pass/fail unit.
func (c *conn) queryStatements(ql string, vars map[string]any) ([]statementResult, error) {
	res, err := c.db.Query(ql, vars)
	if err != nil {
		return nil, err
	}
	return decodeStatementResults(res)
}

// decodeStatementResults re-marshals the driver's generic response value
// and decodes it as one statementResult per statement. The round trip
// through JSON is necessary because surrealdb.DB.Query returns an
// already-decoded interface{} rather than raw bytes.
func decodeStatementResults(res any) ([]statementResult, error) {
	raw, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("database: re-marshal query response: %w", err)
	}
	var stmts []statementResult
	if err := json.Unmarshal(raw, &stmts); err != nil {
		return nil, fmt.Errorf("database: decode per-statement results: %w", err)
	}
	return stmts, nil
}

// health probes the connection with a cheap server-side query. SurrealDB
// has no bare "SELECT 1" target table, so INFO FOR DB stands in for it.
func (c *conn) health() error {
	_, err := c.db.Query("INFO FOR DB;", nil)
	return err
}

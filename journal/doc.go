// Package journal persists provisioned container handles so that a later
// process can find and tear down containers an earlier one left behind.
//
// # Supported Backends
//
//   - SQLite: a local file, the default for single-machine use
//   - PostgreSQL: a shared journal for CI runners using pgx
//
// # Usage
//
//	j, cleanup, err := journal.Connect(ctx, journal.Config{
//	    Type:  "sqlite",
//	    DSN:   "repostore.db",
//	    Table: "repostore_journal",
//	})
//	if err != nil {
//	    return err
//	}
//	defer cleanup()
//
//	m := repostore.NewManager(facade, repostore.WithJournal(j))
//
// Connect pings the database, creates the journal table when missing and
// checks its columns before returning.
//
// Names are never reused: a handle that was released still blocks a new
// Record of the same scheme and name.
package journal

//go:build integration
// +build integration

package test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/mohair"
)

type User struct {
	ID     int    `db:"id"`
	Name   string `db:"name"`
	Email  string `db:"email"`
	Age    int    `db:"age"`
	Status int    `db:"status"`
}

func TestCrossDB_CRUD(t *testing.T) {
	for _, dbConfig := range databases {
		t.Run(dbConfig.name, func(t *testing.T) {
			ds := dbConfig.setup(t)
			defer ds.Close()
			CreateTable(t, ds, "users")
			InsertTestUsers(t, ds.DB, 10)

			ctx := context.Background()
			users := ds.DB.Table("users").Escape(ds.DB.Escape())

			t.Run("Count", func(t *testing.T) {
				row, err := users.Select("COUNT(*) AS n").FindOne(ctx)
				require.NoError(t, err)
				assert.Equal(t, "10", row.String("n"))
			})

			t.Run("FilterOrderPage", func(t *testing.T) {
				rows, err := users.
					Select("id", "name").
					Where(mohair.Eq("status", 1)).
					Where(mohair.Between("age", 21, 29)).
					Order("id DESC").
					Limit(2).
					Offset(1).
					Find(ctx)
				require.NoError(t, err)
				require.Len(t, rows, 2)
				assert.Equal(t, "User7", rows[0].String("name"))
				assert.Equal(t, "User5", rows[1].String("name"))
			})

			t.Run("Decode", func(t *testing.T) {
				rows, err := users.Where(mohair.In("id", 3, 4)).Order("id").Find(ctx)
				require.NoError(t, err)

				var got []User
				require.NoError(t, mohair.DecodeRows(rows, &got))
				require.Len(t, got, 2)
				assert.Equal(t, User{ID: 3, Name: "User3", Email: "user3@example.com", Age: 23, Status: 1}, got[0])
			})

			t.Run("Update", func(t *testing.T) {
				_, err := users.Where(mohair.Eq("id", 2)).Update(mohair.Record{}.Set("name", "Renamed")).Exec(ctx)
				require.NoError(t, err)

				row, err := users.Select("name").Where(mohair.Eq("id", 2)).FindOne(ctx)
				require.NoError(t, err)
				assert.Equal(t, "Renamed", row.String("name"))
			})

			t.Run("Delete", func(t *testing.T) {
				_, err := users.Where(mohair.Gt("id", 8)).Delete().Exec(ctx)
				require.NoError(t, err)

				ok, err := users.Where(mohair.Eq("id", 9)).Exists(ctx)
				require.NoError(t, err)
				assert.False(t, ok)
			})

			t.Run("FindOneNoRows", func(t *testing.T) {
				row, err := users.Where(mohair.Eq("id", 1000)).FindOne(ctx)
				require.NoError(t, err)
				assert.Nil(t, row)
			})
		})
	}
}

func TestCrossDB_JoinGroup(t *testing.T) {
	for _, dbConfig := range databases {
		t.Run(dbConfig.name, func(t *testing.T) {
			ds := dbConfig.setup(t)
			defer ds.Close()
			CreateTable(t, ds, "users")
			CreateTable(t, ds, "posts")
			InsertTestUsers(t, ds.DB, 3)
			InsertTestPosts(t, ds.DB, 1, 1, 3)
			InsertTestPosts(t, ds.DB, 2, 10, 1)

			rows, err := ds.DB.Table("users").
				Select("users.name", "COUNT(posts.id) AS post_count").
				Join("JOIN posts ON posts.user_id = users.id", mohair.Lt("posts.id", 100)).
				Group("users.name").
				Order("users.name").
				Find(context.Background())
			require.NoError(t, err)
			require.Len(t, rows, 2)
			assert.Equal(t, "User1", rows[0].String("name"))
			assert.Equal(t, "3", rows[0].String("post_count"))
			assert.Equal(t, "1", rows[1].String("post_count"))
		})
	}
}

func TestCrossDB_LikeEscaping(t *testing.T) {
	for _, dbConfig := range databases {
		t.Run(dbConfig.name, func(t *testing.T) {
			ds := dbConfig.setup(t)
			defer ds.Close()
			CreateTable(t, ds, "users")

			ctx := context.Background()
			insert, err := ds.DB.Table("users").Insert(
				mohair.Record{}.Set("id", 1).Set("name", "50%_off").Set("email", "a@x"),
				mohair.Record{}.Set("id", 2).Set("name", "50 and off").Set("email", "b@x"),
			)
			require.NoError(t, err)
			_, err = insert.Exec(ctx)
			require.NoError(t, err)

			var prefix mohair.Criterion = mohair.Like("name", "50%").Match(false, true)
			if ds.Driver == "sqlite" {
				// SQLite has no default LIKE escape character.
				prefix = mohair.Raw("name LIKE ? ESCAPE '\\'", prefix.Params()...)
			}
			rows, err := ds.DB.Table("users").Where(prefix).Find(ctx)
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, "50%_off", rows[0].String("name"))
		})
	}
}

func TestCrossDB_Transaction(t *testing.T) {
	for _, dbConfig := range databases {
		t.Run(dbConfig.name, func(t *testing.T) {
			ds := dbConfig.setup(t)
			defer ds.Close()
			CreateTable(t, ds, "users")

			ctx := context.Background()
			add := func(tx *mohair.Tx, id int) {
				q, err := tx.Table("users").Insert(mohair.Record{}.Set("id", id).Set("name", "tx").Set("email", "tx@x"))
				require.NoError(t, err)
				_, err = q.Exec(ctx)
				require.NoError(t, err)
			}

			tx, err := ds.DB.Begin(ctx)
			require.NoError(t, err)
			add(tx, 1)
			require.NoError(t, tx.Rollback())

			tx, err = ds.DB.BeginTx(ctx, &mohair.TxOptions{Isolation: sql.LevelDefault})
			require.NoError(t, err)
			add(tx, 2)
			require.NoError(t, tx.Commit())

			rows, err := ds.DB.Table("users").Select("id").Find(ctx)
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, "2", rows[0].String("id"))
		})
	}
}

// TestCrossDB_WrapDB runs the builder on a pool configured by the caller.
func TestCrossDB_WrapDB(t *testing.T) {
	for _, dbConfig := range databases {
		t.Run(dbConfig.name, func(t *testing.T) {
			ds := dbConfig.setup(t)
			defer ds.Close()
			CreateTable(t, ds, "users")
			InsertTestUsers(t, ds.DB, 20)

			sqlDB, err := sql.Open(ds.Driver, ds.DSN)
			require.NoError(t, err)
			defer sqlDB.Close()
			sqlDB.SetMaxOpenConns(8)
			sqlDB.SetConnMaxLifetime(time.Hour)

			db, err := mohair.WrapDB(sqlDB, ds.Driver, mohair.WithStmtCacheCapacity(16))
			require.NoError(t, err)

			base := db.Table("users").Select("name")
			var wg sync.WaitGroup
			errs := make(chan error, 20)
			for i := 1; i <= 20; i++ {
				wg.Add(1)
				go func(id int) {
					defer wg.Done()
					row, err := base.Where(mohair.Eq("id", id)).FindOne(context.Background())
					if err == nil && row == nil {
						err = sql.ErrNoRows
					}
					errs <- err
				}(i)
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				require.NoError(t, err)
			}

			stats := db.CacheStats()
			assert.Equal(t, 1, stats.Size)
			assert.Equal(t, uint64(20), stats.Hits+stats.Misses)

			require.NoError(t, db.Close())
			assert.NoError(t, sqlDB.Ping(), "WrapDB must not close the caller's pool")
		})
	}
}

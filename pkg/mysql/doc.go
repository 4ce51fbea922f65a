// Package mysql opens database/sql connections through go-sql-driver/mysql.
//
// Connect applies the pool limits from Config and retries the first ping.
// Transactions travel in the context the same way as in package pg: InTx
// binds one, Conn picks it up, so a store can take SELECT ... FOR UPDATE
// locks that live as long as the surrounding request.
package mysql

// Command relaystub runs an in-memory dev relay with one generated pairing,
// so the signed transport can be exercised locally without a production
// relay. It prints the pairing bundle for `vkrelay pair` on startup.
package main

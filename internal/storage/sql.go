package storage

import (
	_ "embed"
)

const (
	insertRunSQL = `
INSERT INTO runs (created,
                  object,
                  telescope,
                  date_obs,
                  date_end,
                  files,
                  config,
                  observations)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	selectRunSQL = `
SELECT id,
       created,
       object,
       telescope,
       date_obs,
       date_end,
       files,
       config,
       observations
FROM runs
WHERE id = ?`

	selectRunsSQL = `
SELECT id,
       created,
       object,
       telescope,
       date_obs,
       date_end,
       files,
       config,
       observations
FROM runs
ORDER BY id`

	insertBinsSQL = `
INSERT INTO bins (run_id,
                  axis,
                  idx,
                  edge,
                  average,
                  sum,
                  count)
VALUES `

	selectBinsSQL = `
SELECT idx,
       edge,
       average,
       sum,
       count
FROM bins
WHERE run_id = ?
  AND axis = ?
ORDER BY idx`

	insertChannelsSQL = `
INSERT INTO channels (run_id,
                      channel,
                      average)
VALUES `

	selectChannelsSQL = `
SELECT channel,
       average
FROM channels
WHERE run_id = ?
ORDER BY channel`
)

//go:embed schema.sql
var initSchemaSQL string

//go:embed indexes.sql
var initIndexesSQL string

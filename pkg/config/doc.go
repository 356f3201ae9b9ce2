/*
Package config loads and validates repoexport settings.

	            +-------------+
	            |   Config    |
	            | (Settings)  |
	            +------+------+
	                   |
	      +------------+------------+
	      |            |            |
	+-----+-----+ +----+----+ +-----+-----+
	|   YAML    | |  JSON   | |    HCL    |
	|  Parser   | | Parser  | |  Parser   |
	+-----------+ +---------+ +-----------+

🎯 Purpose:
- Picks a parser by file extension, strict about unknown fields
- Fills in defaults for batch size, timeouts and transfer limits
- Rejects unknown drivers, index kinds, compressions and bad globs

🔄 Flow:
 1. Reads the file
 2. Parses format specific syntax (.repoexport tries YAML, then HCL)
 3. Validates and normalizes
 4. Hands typed accessors (Dialect, Compression, Timeout) to the CLI

🔍 Example:

	cfg, err := config.Load(ctx, "repoexport.yaml")
	if err != nil {
		return err
	}
	db, err := database.Open(ctx, cfg.Dialect(), cfg.Database.DSN)
*/
package config

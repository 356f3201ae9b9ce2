/*
Package walker drives paginated, de-duplicated id scans over the search index.

	  index.Index                 Walker                    caller
	+-------------+  rows/start  +---------+   []string   +---------+
	| id asc page | -----------> | SeenSet | -----------> |  batch  |
	+-------------+   fl=id      +----+----+              +---------+
	                                  |
	                          duplicates -> run.Context

🎯 Purpose:
- Page one work type at a time with a stable sort, so a live index cannot
  reorder rows between requests
- Drop ids a previous page already produced and report them

🔄 Flow:
1. Ask for rows at offset 0, 1*batch, 2*batch, ...
2. Stop on the first empty page
3. Filter every page through the SeenSet before yielding it

⚡ Seen sets:
- MemorySeen keeps a map per scan
- RedisSeen keeps a SADD set per scan, keyed by run id and work type, with a
  ttl so an interrupted run does not leak keys
*/
package walker

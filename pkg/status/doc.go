/*
Package status turns the state of a finished tenant run into a summary for
people and for machines.

	            +-------------+
	            | run.Context |
	            +------+------+
	                   |
	            +------+------+
	            |   Summary   |
	            +------+------+
	                   |
	      +------------+------------+
	      |                         |
	+-----+------+           +------+------+
	|   Render   |           |  WriteJSON  |
	| (terminal) |           |   (file)    |
	+------------+           +-------------+

🎯 Purpose:
- Counts per work type and category: scanned, exported, skipped, duplicates
- Failures grouped by kind, with the ids they hit
- Output files written and, for file runs, the transfer result

🔄 Flow:
 1. The exporter records everything on a run.Context
 2. New snapshots it, whatever happened, aborted runs included
 3. Render prints a table and colored failure lists
 4. WriteJSON drops <cname>_summary.json next to the exports, atomically

🔍 Example:

	summary := status.New(res.Run, res.Outputs, time.Now())
	summary.Render(os.Stdout)
	summary.WriteJSON(status.Path(outDir, cname))
*/
package status

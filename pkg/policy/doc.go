/*
Package policy normalizes embargoes and leases into one time-evaluated shape.

	  association (Hyrax::Embargo)      owner (work / file set)
	  +--------------------------+     +--------------------------+
	  | embargo_release_date     |     | embargo_release_date     |
	  | visibility_during_...    |     | visibility_during_...    |
	  | visibility_after_...     |     | visibility_after_...     |
	  | embargo_history          |     | embargo_history          |
	  +------------+-------------+     +------------+-------------+
	               |     per field: association, else owner
	               +----------------+---------------+
	                                |
	                         +------+------+
	                         |   Policy    |
	                         | active? now |
	                         +-------------+

🎯 Purpose:
- Merge a separately stored policy record with the fields flattened onto its owner
- Collapse a policy with nothing set into "no policy"
- Evaluate whether the policy is in force at a given instant

⚡ Rules:
- Each of the four sub-fields falls back on its own, never all-or-nothing
- A timestamp that does not parse counts as blank
- Active means the boundary is strictly after now and the owner's visibility
  equals the "during" visibility
*/
package policy

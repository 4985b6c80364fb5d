/*
Package parent is a supervision core for a single owner process managing a
dynamic set of children.

Unlike a classic supervisor with a fixed restart strategy, dependencies are
declared per child: BindsTo establishes a one-way lifecycle dependency on an
older sibling (its termination drags the dependent down), and ShutdownGroup
declares a set of children that stop together. When a child exits, the
parent stops its dependents and group mates in reverse startup order, then
restarts the whole set in the original startup order according to the
originating child's restart policy.

The owner initializes the core and funnels its mailbox through it:

	p, err := parent.Initialize(self)
	...
	pid, err := p.StartChild(parent.NewChildSpec("db", startDB))
	pid, err = p.StartChild(parent.NewChildSpec("cache", startCache,
		parent.SetBindsTo(parent.ByID("db")),
	))
	...
	// in the owner's receive loop:
	res, err := p.HandleMessage(msg)
	if err != nil {
		// restart ceiling exceeded; children are already down. Exit.
		return err
	}
	if res.Unhandled { // not a parent message
	}

Restart intensity is accounted both parent-wide and per child over sliding
windows; exceeding either ceiling shuts all children down and hands the
owner a terminal exit reason.

Most users want the parentsrv package, which wraps this core in a genserver
and presents it as a supervisor to generic supervision tools.
*/
package parent

package treasury_test

import (
	"context"
	"fmt"
	"log"

	"github.com/xraph/treasury"
	"github.com/xraph/treasury/store/memory"
)

// The quick start from the package documentation.
func Example() {
	ctx := context.Background()

	t := treasury.New(memory.New(), treasury.WithReconcileSchedule(""))
	if err := t.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer func() { _ = t.Stop() }()

	if _, _, err := t.AddTokenBalance(ctx, "alice", treasury.NewAmount(1000)); err != nil {
		log.Fatal(err)
	}
	acct, tr, err := t.Stack(ctx, "alice", treasury.NewAmount(300))
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(acct.TokenBalance, acct.StackBalance, tr.Status())
	// Output: 700 300 Completed
}

func ExampleTreasury_BatchTransfer() {
	ctx := context.Background()
	t := treasury.New(memory.New(), treasury.WithReconcileSchedule(""))

	if _, _, err := t.AddTokenBalance(ctx, "alice", treasury.NewAmount(100)); err != nil {
		log.Fatal(err)
	}
	res, err := t.BatchTransfer(ctx, "alice", []treasury.TransferLeg{
		{To: "bob", Amount: treasury.NewAmount(30)},
		{To: "carol", Amount: treasury.NewAmount(20)},
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(res.Account.TokenBalance, len(res.Traces))
	for _, tr := range res.Traces {
		fmt.Println(tr.Operation(), tr.Recipients(), tr.Amount())
	}
	// Output:
	// 50 2
	// transfer [bob] 30
	// transfer [carol] 20
}

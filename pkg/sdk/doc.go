// Package docflat reads MongoDB collections as flat rows in-process, without
// the HTTP service or a search sink.
//
// Every document becomes a map from dotted-path keys to scalar values:
//
//	{"user": {"name": "ada", "tags": ["a", "b"]}, "items": [{"sku": "x"}]}
//
// yields
//
//	{"user.name": "ada", "user.tags": ["a", "b"], "items.0.sku": "x"}
//
// Field rules rename columns and reparse date strings into
// yyyy-MM-dd'T'HH:mm:ss'Z' form:
//
//	client, _ := docflat.Open(ctx,
//	    docflat.WithDatabase("shop"),
//	    docflat.WithHosts("db1", "db2"),
//	    docflat.WithFieldRules(docflat.FieldRule{
//	        MongoField: "created",
//	        Column:     "created_at",
//	        DateFormat: "yyyy-MM-dd HH:mm:ss",
//	    }),
//	)
//	defer client.Close(ctx)
//
//	rows, _ := client.Rows(ctx, "orders", `{"status": "paid"}`)
//	defer rows.Close(ctx)
//	for r, err := range rows.All(ctx) {
//	    ...
//	}
package docflat

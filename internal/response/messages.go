package response

// OperationMessages は操作ごとの成功・失敗メッセージ。
type OperationMessages struct {
	Success string
	Failure string
}

// Catalog はエンベロープに載せるメッセージの固定カタログ。
type Catalog struct {
	InvalidParameters string
	Unauthenticated   string
	Internal          string
	Login             OperationMessages
	GetItems          OperationMessages
	NewItem           OperationMessages
	EditItem          OperationMessages
	DeleteItem        OperationMessages
}

// Messages はクライアントに返すメッセージ一覧。
// 文言はクライアントが表示に使うため変更しないこと。
var Messages = Catalog{
	InvalidParameters: "Missing required parameters, check and try again!",
	Unauthenticated:   "Missing authentication for username and password",
	Internal:          "Internal server error",
	Login: OperationMessages{
		Success: "Successfully logged in",
		Failure: "Failed to log in",
	},
	GetItems: OperationMessages{
		Success: "Successfully got items",
		Failure: "Failed to get items",
	},
	NewItem: OperationMessages{
		Success: "Successfully created new item",
		Failure: "Failed to create new items",
	},
	EditItem: OperationMessages{
		Success: "Successfully edited item",
		Failure: "Failed to edit item",
	},
	DeleteItem: OperationMessages{
		Success: "Successfully deleted item",
		Failure: "Failed to delete item",
	},
}

package cmd

import "github.com/halden/outlay/internal/builder"

func builderCreateParams() builder.CreateExpenseParams {
	return builder.CreateExpenseParams{
		ChatReportID: createChatID,
		PayerLogin:   createPayer,
		Amount:       createAmount,
		Currency:     createCurrency,
		Merchant:     createMerchant,
		Category:     createCategory,
		Tag:          createTag,
		Comment:      createComment,
		PolicyID:     createPolicyID,
	}
}

func builderSplitParams() builder.SplitExpenseParams {
	return builder.SplitExpenseParams{
		Total:             createAmount,
		Currency:          createCurrency,
		Merchant:          createMerchant,
		Category:          createCategory,
		Tag:               createTag,
		Comment:           createComment,
		PolicyID:          createPolicyID,
		ParticipantLogins: splitParticipants,
	}
}
